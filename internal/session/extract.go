package session

import (
	"strings"

	"linkharvest/internal/harvest"
)

// profilePayload mirrors the object built by extractProfileJS inside the
// page. Field extraction happens in the page so one Evaluate round trip
// captures everything.
type profilePayload struct {
	Name        string           `json:"name"`
	JobTitle    string           `json:"job_title"`
	Company     string           `json:"company"`
	About       string           `json:"about"`
	Experiences []entryPayload   `json:"experiences"`
	Educations  []entryPayload   `json:"educations"`
	Interests   []string         `json:"interests"`
	Accomps     []accompPayload  `json:"accomplishments"`
}

type entryPayload struct {
	Title       string `json:"title"`
	Institution string `json:"institution"`
	Meta        string `json:"meta"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type accompPayload struct {
	Category string `json:"category"`
	Title    string `json:"title"`
}

func (p profilePayload) toProfile(rawURL string) harvest.Profile {
	out := harvest.Profile{
		URL:      rawURL,
		Name:     strings.TrimSpace(p.Name),
		Company:  strings.TrimSpace(p.Company),
		JobTitle: strings.TrimSpace(p.JobTitle),
		About:    strings.TrimSpace(p.About),
	}
	for _, e := range p.Experiences {
		out.Experiences = append(out.Experiences, harvest.Experience{
			Position:    strings.TrimSpace(e.Title),
			Institution: strings.TrimSpace(e.Institution),
			Duration:    strings.TrimSpace(e.Meta),
			Location:    strings.TrimSpace(e.Location),
			Description: strings.TrimSpace(e.Description),
		})
	}
	for _, e := range p.Educations {
		edu := harvest.Education{
			Institution: strings.TrimSpace(e.Institution),
			Degree:      strings.TrimSpace(e.Title),
		}
		if from, to, ok := strings.Cut(strings.TrimSpace(e.Meta), " - "); ok {
			edu.FromDate = strings.TrimSpace(from)
			edu.ToDate = strings.TrimSpace(to)
		} else {
			edu.FromDate = strings.TrimSpace(e.Meta)
		}
		out.Educations = append(out.Educations, edu)
	}
	for _, i := range p.Interests {
		if v := strings.TrimSpace(i); v != "" {
			out.Interests = append(out.Interests, v)
		}
	}
	for _, a := range p.Accomps {
		if v := strings.TrimSpace(a.Title); v != "" {
			out.Accomplishments = append(out.Accomplishments, harvest.Accomplishment{
				Category: strings.TrimSpace(a.Category),
				Title:    v,
			})
		}
	}
	return out
}

// collectHrefsJS gathers distinct profile hrefs matched by a selector; the
// %s placeholder receives the CSS selector.
const collectHrefsJS = `(() => {
	const seen = new Set();
	const out = [];
	for (const a of document.querySelectorAll(%q)) {
		const href = (a.href || "").split("?")[0];
		if (!href || seen.has(href)) continue;
		seen.add(href);
		out.push(href);
	}
	return out;
})()`

// extractProfileJS pulls the structured fields out of a rendered profile
// page. Section anchors (#about, #experience, #education) are stable ids on
// the target site; entry internals are best-effort.
const extractProfileJS = `(() => {
	const text = (sel, root) => {
		const el = (root || document).querySelector(sel);
		return el ? el.innerText.trim() : "";
	};
	const sectionItems = (anchor) => {
		const a = document.querySelector(anchor);
		if (!a) return [];
		const section = a.closest("section");
		if (!section) return [];
		return Array.from(section.querySelectorAll("li.artdeco-list__item"));
	};
	const entry = (li) => ({
		title: text("div.t-bold span[aria-hidden='true']", li),
		institution: text("span.t-14.t-normal span[aria-hidden='true']", li),
		meta: text("span.t-14.t-normal.t-black--light span[aria-hidden='true']", li),
		location: "",
		description: text("div.inline-show-more-text", li),
	});
	return {
		name: text("main h1"),
		job_title: text("main div.text-body-medium"),
		company: text("main ul li button span[aria-hidden='true']"),
		about: text("#about ~ div.display-flex span[aria-hidden='true']"),
		experiences: sectionItems("#experience").map(entry),
		educations: sectionItems("#education").map(entry),
		interests: Array.from(document.querySelectorAll("#interests ~ div span[aria-hidden='true']"))
			.map(el => el.innerText.trim()).filter(Boolean),
		accomplishments: [],
	};
})()`
