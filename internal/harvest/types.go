// Package harvest defines the core types for a profile crawl run and the
// fetch orchestrator that drives it.
package harvest

import (
	"time"
)

// Experience is one position entry on a profile.
type Experience struct {
	Position    string `json:"position_title"`
	Institution string `json:"institution_name"`
	Duration    string `json:"duration,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one schooling entry on a profile.
type Education struct {
	Institution string `json:"institution_name"`
	Degree      string `json:"degree,omitempty"`
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
}

// Contact is a linked person harvested from a profile's network section.
type Contact struct {
	Name       string `json:"name,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Accomplishment is a certification, publication, or award entry.
type Accomplishment struct {
	Category string `json:"category,omitempty"`
	Title    string `json:"title"`
}

// Profile is the structured result of rendering one profile page. A profile
// without a Name is treated as a failed fetch.
type Profile struct {
	URL             string           `json:"url"`
	Name            string           `json:"name"`
	Company         string           `json:"company,omitempty"`
	JobTitle        string           `json:"job_title,omitempty"`
	About           string           `json:"about,omitempty"`
	Experiences     []Experience     `json:"experiences,omitempty"`
	Educations      []Education      `json:"educations,omitempty"`
	Contacts        []Contact        `json:"contacts,omitempty"`
	Interests       []string         `json:"interests,omitempty"`
	Accomplishments []Accomplishment `json:"accomplishments,omitempty"`
}

// Record pairs a fetched profile with its normalized identity and capture
// time. Records are never mutated after construction.
type Record struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Profile    Profile   `json:"profile"`
}

// Outcome is the terminal state of one target's fetch attempt sequence.
type Outcome string

// Terminal target outcomes.
const (
	// OutcomeSucceeded means a populated profile was captured and recorded.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeHardFailed means the attempt budget was exhausted; the target
	// stays out of the identity store so a future run may retry it.
	OutcomeHardFailed Outcome = "hard_failed"
	// OutcomeSkipped means the target was already known at attempt time.
	OutcomeSkipped Outcome = "skipped"
)

// Summary aggregates per-run counters.
type Summary struct {
	Processed    int
	Succeeded    int
	HardFailed   int
	Skipped      int
	SoftFailures int
	Canceled     bool
}
