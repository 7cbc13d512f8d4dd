package ai

import (
	"context"
	"strings"

	"github.com/brilliox/brilliox/pkg/i18n"
)

// DefaultPlatform is used when an ad request names no platform.
const DefaultPlatform = "facebook"

// HuntQuery asks the chain for a single prospect search query. The query is
// empty when no provider answered. Hunt queries are never cached.
func (g *Generator) HuntQuery(ctx context.Context, profession, location, extra string) (string, Result) {
	var b strings.Builder
	b.WriteString("Build a search query to find potential customers for the profession: ")
	b.WriteString(strings.TrimSpace(profession))
	if loc := strings.TrimSpace(location); loc != "" {
		b.WriteString(" in the area: ")
		b.WriteString(loc)
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString(", focusing on: ")
		b.WriteString(extra)
	}

	res := g.Generate(ctx, Request{Prompt: b.String(), Variant: VariantLeadHunt})
	if !res.Success {
		return "", res
	}
	return firstLine(res.Response), res
}

// AdCopy is a generated advertisement split into its parts.
type AdCopy struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
	Platform string `json:"platform"`
	// Text is the unparsed reply.
	Text   string `json:"ad_copy"`
	Result Result `json:"-"`
}

// AdCopy generates ad copy for a product on the given platform.
func (g *Generator) AdCopy(ctx context.Context, product, description, audience, platform, lang string) AdCopy {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = DefaultPlatform
	}
	prompt := strings.Join([]string{
		"Product: " + strings.TrimSpace(product),
		"Description: " + strings.TrimSpace(description),
		"Target audience: " + strings.TrimSpace(audience),
		"Platform: " + platform,
		"",
		"Write a complete ad (Headline, Body, CTA).",
	}, "\n")

	res := g.Generate(ctx, Request{Prompt: prompt, Variant: VariantAdCopy, UseCache: true, Lang: lang})
	if !res.Success {
		if lang == "" {
			lang = g.lang
		}
		msg := i18n.T(lang, "ad_failed")
		return AdCopy{Body: msg, Text: msg, Platform: platform, Result: res}
	}

	ad := ParseAdCopy(res.Response)
	ad.Platform = platform
	ad.Result = res
	return ad
}

var adLabels = map[string]string{
	"headline":       "headline",
	"hook":           "headline",
	"body":           "body",
	"cta":            "cta",
	"call to action": "cta",
}

// ParseAdCopy splits a reply labelled with Headline/Hook, Body and CTA
// lines. A reply without those labels is returned whole as the body.
func ParseAdCopy(text string) AdCopy {
	ad := AdCopy{Text: text}
	parts := map[string][]string{}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#"))
		if label, rest, ok := strings.Cut(trimmed, ":"); ok {
			key := strings.ToLower(strings.TrimSpace(strings.Trim(label, "*")))
			if section, known := adLabels[key]; known {
				current = section
				if rest = strings.TrimSpace(strings.Trim(rest, "* ")); rest != "" {
					parts[current] = append(parts[current], rest)
				}
				continue
			}
			if strings.HasPrefix(key, "variant") {
				// Only the first variant is parsed.
				break
			}
		}
		if current != "" && trimmed != "" {
			parts[current] = append(parts[current], trimmed)
		}
	}

	if len(parts["headline"]) == 0 && len(parts["cta"]) == 0 {
		ad.Body = strings.TrimSpace(text)
		return ad
	}
	ad.Headline = strings.Join(parts["headline"], " ")
	ad.Body = strings.Join(parts["body"], "\n")
	ad.CTA = strings.Join(parts["cta"], " ")
	return ad
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return strings.Trim(line, "`")
		}
	}
	return ""
}
