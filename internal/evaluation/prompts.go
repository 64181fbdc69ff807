package evaluation

import (
	"fmt"
	"strings"
)

// The two prompt templates instruct the provider to answer with exactly one
// TOON line: ranking[5]: Brand | Model,Brand | Model,... That grammar is a
// contract with ParseRanking, not something the builder validates.

const phase1Template = `Return ONE LINE ONLY.

Task: recommend the 5 best %s today %s based on: %s.
Use web_search.

Rules:
- Exactly 5 items separated by commas
- Each item MUST be: Brand | Model
- Keep brand casing consistent (use the brand's official casing; do not output the same brand with different casing)
- No quotes. No extra text.

OUTPUT MUST BE EXACTLY:
ranking[5]: Brand | Model,Brand | Model,Brand | Model,Brand | Model,Brand | Model
`

const phase2Template = `Return ONE LINE ONLY.

Task: recommend the 5 best %s today %s, focusing ONLY on this criterion: %s.
Use web_search.

Rules:
- Exactly 5 items separated by commas
- Each item MUST be: Brand | Model
- Keep brand casing consistent (use the brand's official casing; do not output the same brand with different casing)
- No quotes. No extra text.

OUTPUT MUST BE EXACTLY:
ranking[5]: Brand | Model,Brand | Model,Brand | Model,Brand | Model,Brand | Model
`

// Phase1Prompt renders the holistic ranking query across all criteria in
// the given order.
func Phase1Prompt(productType string, criteria []string, country, location string) string {
	return fmt.Sprintf(phase1Template, productType, geoText(country, location), strings.Join(criteria, ", "))
}

// Phase2Prompt renders the ranking query focused on a single criterion.
func Phase2Prompt(productType, criterion, country, location string) string {
	return fmt.Sprintf(phase2Template, productType, geoText(country, location), criterion)
}

func geoText(country, location string) string {
	country = strings.TrimSpace(country)
	location = strings.TrimSpace(location)
	switch {
	case country != "" && location != "":
		return fmt.Sprintf("in %s, %s", location, country)
	case country != "":
		return "in " + country
	case location != "":
		return "in " + location
	default:
		return ""
	}
}
