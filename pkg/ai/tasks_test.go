package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/i18n"
)

func TestHuntQuery(t *testing.T) {
	a := failing("a")
	b := ok("b", "\nsite:facebook.com \"dentist\" \"Cairo\" -jobs\nexplanation")
	g := NewGenerator([]Provider{a, b}, NewMemoryCache(0), nil)

	query, res := g.HuntQuery(context.Background(), "dentist", "Cairo", "clinics")

	assert.True(t, res.Success)
	assert.Equal(t, "b", res.Provider, "hunt queries use the full fallback chain")
	assert.Equal(t, `site:facebook.com "dentist" "Cairo" -jobs`, query)
	require.Len(t, b.prompts, 1)
	assert.True(t, strings.HasPrefix(b.prompts[0], SystemPrompt(VariantLeadHunt)))
	assert.Contains(t, b.prompts[0], "in the area: Cairo")
	assert.Contains(t, b.prompts[0], "focusing on: clinics")

	g.HuntQuery(context.Background(), "dentist", "Cairo", "clinics")
	assert.Equal(t, 2, b.Calls(), "hunt queries bypass the cache")
}

func TestHuntQuery_OptionalParts(t *testing.T) {
	a := ok("a", "q")
	g := NewGenerator([]Provider{a}, nil, nil)
	g.HuntQuery(context.Background(), "lawyer", " ", "")

	require.Len(t, a.prompts, 1)
	assert.NotContains(t, a.prompts[0], "in the area")
	assert.NotContains(t, a.prompts[0], "focusing on")
}

func TestHuntQuery_Failure(t *testing.T) {
	g := NewGenerator([]Provider{failing("a")}, nil, nil)
	query, res := g.HuntQuery(context.Background(), "x", "", "")
	assert.Empty(t, query)
	assert.False(t, res.Success)
}

func TestAdCopy(t *testing.T) {
	reply := "**Headline:** Smile brighter\nBody: Whitening in one visit.\nNo pain.\nCTA: Book now"
	g := NewGenerator([]Provider{failing("a"), ok("b", reply)}, NewMemoryCache(0), nil)

	ad := g.AdCopy(context.Background(), "Whitening", "Teeth whitening", "adults", "", "en")

	assert.True(t, ad.Result.Success)
	assert.Equal(t, DefaultPlatform, ad.Platform)
	assert.Equal(t, "Smile brighter", ad.Headline)
	assert.Equal(t, "Whitening in one visit.\nNo pain.", ad.Body)
	assert.Equal(t, "Book now", ad.CTA)
	assert.Equal(t, reply, ad.Text)
}

func TestAdCopy_Failure(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	ad := g.AdCopy(context.Background(), "p", "d", "a", "instagram", "en")

	assert.False(t, ad.Result.Success)
	assert.Equal(t, "instagram", ad.Platform)
	assert.Equal(t, i18n.T("en", "ad_failed"), ad.Text)
	assert.Equal(t, ad.Text, ad.Body)
}

func TestParseAdCopy(t *testing.T) {
	t.Run("unlabelled reply is the body", func(t *testing.T) {
		ad := ParseAdCopy("  Just buy it.  ")
		assert.Equal(t, "Just buy it.", ad.Body)
		assert.Empty(t, ad.Headline)
		assert.Empty(t, ad.CTA)
	})

	t.Run("hook alias and second variant ignored", func(t *testing.T) {
		ad := ParseAdCopy("Hook: Tired?\nBody: Sleep better.\nCTA: Try it\nVariant B:\nHook: Other")
		assert.Equal(t, "Tired?", ad.Headline)
		assert.Equal(t, "Sleep better.", ad.Body)
		assert.Equal(t, "Try it", ad.CTA)
	})
}

func TestParseVariant(t *testing.T) {
	assert.Equal(t, VariantAdCopy, ParseVariant(" AD_COPY "))
	assert.Equal(t, VariantLeadHunt, ParseVariant("lead_hunt"))
	assert.Equal(t, VariantDefault, ParseVariant(""))
	assert.Equal(t, VariantDefault, ParseVariant("poetry"))
}
