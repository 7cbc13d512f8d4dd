package ai

import "strings"

// Variant selects the system prompt used for a generation.
type Variant string

const (
	VariantDefault  Variant = "default"
	VariantAdCopy   Variant = "ad_copy"
	VariantLeadHunt Variant = "lead_hunt"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantDefault, VariantAdCopy, VariantLeadHunt:
		return true
	}
	return false
}

// ParseVariant maps a user supplied name onto a Variant. Unknown or empty
// names select VariantDefault.
func ParseVariant(s string) Variant {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return VariantDefault
	}
	return v
}

const defaultPrompt = `You are Brilliox Pro, a senior marketing and sales consultant for small and
medium businesses in the Arab world.
- Answer in the language the user writes in; default to Modern Standard Arabic.
- Give concrete, actionable steps instead of general advice.
- When asked about customers, suggest where to find them, how to reach them and
  what to say in the first message.
- Keep answers structured with short headings and bullet points.
- Never invent statistics or client names.`

const adCopyPrompt = `You are an ad copy automation engine for social and search platforms.
Write every ad in the Hook, Body, CTA structure and label the parts exactly as:
Headline: <one attention grabbing line>
Body: <two to four short sentences on benefits and proof>
CTA: <one clear call to action>
Adapt tone and length to the target platform (Facebook, Instagram, TikTok,
Google, LinkedIn). Write in the language of the product description.
When useful, add a second variant labelled "Variant B" for A/B testing.`

const leadHuntPrompt = `You build a single Google search query that surfaces potential customers
for a given profession and location.
- Combine site: operators for directories and social networks
  (facebook.com, instagram.com, linkedin.com, maps and local listings).
- Add phone number patterns typical for the requested country.
- Exclude job boards, news sites and competitors' ads with "-" operators.
- Output only the query on one line. No explanation, no quotes around it.`

// SystemPrompt returns the fixed system prompt for v.
func SystemPrompt(v Variant) string {
	switch v {
	case VariantAdCopy:
		return adCopyPrompt
	case VariantLeadHunt:
		return leadHuntPrompt
	default:
		return defaultPrompt
	}
}
