package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToProfile_TrimsAndMaps(t *testing.T) {
	t.Parallel()
	payload := profilePayload{
		Name:     "  Ada Lovelace ",
		JobTitle: " Principal Engineer\n",
		Company:  " Analytical Engines ",
		About:    "  Computing pioneer  ",
		Experiences: []entryPayload{
			{
				Title:       " Principal Engineer ",
				Institution: " Analytical Engines ",
				Meta:        " Jan 2023 - Present · 3 yrs ",
				Description: " Led the difference engine team ",
			},
		},
		Interests: []string{" mathematics ", "", "music"},
		Accomps: []accompPayload{
			{Category: "publication", Title: " Notes on the Analytical Engine "},
			{Category: "award", Title: "  "},
		},
	}

	p := payload.toProfile("https://site/in/ada")

	require.Equal(t, "https://site/in/ada", p.URL)
	require.Equal(t, "Ada Lovelace", p.Name)
	require.Equal(t, "Principal Engineer", p.JobTitle)
	require.Equal(t, "Analytical Engines", p.Company)
	require.Equal(t, "Computing pioneer", p.About)

	require.Len(t, p.Experiences, 1)
	require.Equal(t, "Principal Engineer", p.Experiences[0].Position)
	require.Equal(t, "Analytical Engines", p.Experiences[0].Institution)
	require.Equal(t, "Jan 2023 - Present · 3 yrs", p.Experiences[0].Duration)
	require.Equal(t, "Led the difference engine team", p.Experiences[0].Description)

	require.Equal(t, []string{"mathematics", "music"}, p.Interests)

	// Blank accomplishment titles are dropped.
	require.Len(t, p.Accomplishments, 1)
	require.Equal(t, "publication", p.Accomplishments[0].Category)
}

func TestToProfile_EducationDateSplit(t *testing.T) {
	t.Parallel()
	payload := profilePayload{
		Name: "Ada",
		Educations: []entryPayload{
			{Title: "Mathematics", Institution: "University of London", Meta: "1833 - 1835"},
			{Title: "Logic", Institution: "Home Tutoring", Meta: "1830"},
		},
	}

	p := payload.toProfile("https://site/in/ada")
	require.Len(t, p.Educations, 2)

	require.Equal(t, "University of London", p.Educations[0].Institution)
	require.Equal(t, "Mathematics", p.Educations[0].Degree)
	require.Equal(t, "1833", p.Educations[0].FromDate)
	require.Equal(t, "1835", p.Educations[0].ToDate)

	// A single date lands in FromDate with ToDate left empty.
	require.Equal(t, "1830", p.Educations[1].FromDate)
	require.Empty(t, p.Educations[1].ToDate)
}

func TestToProfile_EmptyPayload(t *testing.T) {
	t.Parallel()
	p := profilePayload{}.toProfile("https://site/in/x")
	require.Equal(t, "https://site/in/x", p.URL)
	require.Empty(t, p.Name)
	require.Empty(t, p.Experiences)
	require.Empty(t, p.Educations)
	require.Empty(t, p.Interests)
}
