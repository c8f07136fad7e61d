package selector

import (
	"testing"

	"github.com/JustinTDCT/MediaForge/internal/imaging"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }
func i64ptr(i int64) *int64   { return &i }

func candidate(provider string, lang string, w, h int, votes int) *models.AssetCandidate {
	c := &models.AssetCandidate{
		AssetType: models.AssetPoster,
		Provider:  provider,
		SourceURL: "http://" + provider + "/asset.jpg",
		Width:     intptr(w),
		Height:    intptr(h),
		Votes:     intptr(votes),
	}
	if lang != "" {
		c.Language = strptr(lang)
	}
	return c
}

func enStrategy() Strategy {
	return Strategy{PreferredLanguage: "en", ProviderPriority: Presets["quality_first"]}
}

func TestTierTable(t *testing.T) {
	cases := []struct {
		name string
		c    *models.AssetCandidate
		want int
	}{
		{"preferred HD", candidate("tmdb", "en", 2000, 3000, 10), 1},
		{"preferred SD", candidate("tmdb", "en", 500, 750, 10), 2},
		{"neutral language counts as preferred", candidate("tmdb", "", 500, 750, 10), 2},
		{"wrong language HD", candidate("tmdb", "de", 2000, 3000, 10), 3},
		{"wrong language SD", candidate("tmdb", "de", 500, 750, 10), 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Tier(tc.c, "en"))
		})
	}
}

func TestIsHDFromQualityHint(t *testing.T) {
	c := candidate("fanarttv", "en", 0, 0, 5)
	c.Width, c.Height = nil, nil
	assert.False(t, IsHD(c))

	c.QualityHint = strptr("1080p")
	assert.True(t, IsHD(c))

	c.QualityHint = strptr("BluRay")
	assert.True(t, IsHD(c))

	c.QualityHint = strptr("dvd")
	assert.False(t, IsHD(c))
}

func TestLanguageFit(t *testing.T) {
	assert.Equal(t, 1.0, LanguageFit(strptr("en"), "en"))
	assert.Equal(t, 1.0, LanguageFit(strptr("EN"), "en"))
	assert.Equal(t, 0.5, LanguageFit(nil, "en"))
	assert.Equal(t, 0.5, LanguageFit(strptr(""), "en"))
	assert.Equal(t, 0.5, LanguageFit(strptr("00"), "en"))
	assert.Equal(t, 0.0, LanguageFit(strptr("fr"), "en"))
}

func TestBetterTierDominates(t *testing.T) {
	// Lower tier always wins regardless of votes or size.
	tier2 := candidate("omdb", "en", 500, 750, 10000)
	tier1 := candidate("tmdb", "en", 2000, 3000, 1)
	assert.True(t, Better(tier1, tier2, enStrategy()))
	assert.False(t, Better(tier2, tier1, enStrategy()))
}

func TestBetterVotesNeedSignificantMargin(t *testing.T) {
	s := enStrategy()
	a := candidate("tmdb", "en", 2000, 3000, 100)
	b := candidate("fanarttv", "en", 2000, 3000, 120)

	// 20% apart: within the 50% band, falls through to provider priority,
	// where fanarttv leads quality_first.
	assert.True(t, Better(b, a, s))
	assert.False(t, Better(a, b, s))

	// 200 vs 100 is a significant margin; votes decide.
	big := candidate("tmdb", "en", 2000, 3000, 200)
	assert.True(t, Better(big, a, s))
}

func TestBetterAreaNeedSignificantMargin(t *testing.T) {
	s := enStrategy()
	small := candidate("fanarttv", "en", 2000, 3000, 100)
	large := candidate("tmdb", "en", 2400, 3600, 100)

	// 44% larger area beats equal votes.
	assert.True(t, Better(large, small, s))

	// A 5% area difference is noise; provider order decides.
	near := candidate("tmdb", "en", 2040, 3040, 100)
	assert.True(t, Better(small, near, s))
}

func TestBetterProviderPriorityTieBreak(t *testing.T) {
	a := candidate("tmdb", "en", 2000, 3000, 100)
	b := candidate("fanarttv", "en", 2000, 3000, 100)

	assert.True(t, Better(b, a, enStrategy()), "quality_first prefers fanarttv")

	s := Strategy{PreferredLanguage: "en", ProviderPriority: Presets["tmdb_primary"]}
	assert.True(t, Better(a, b, s), "tmdb_primary prefers tmdb")

	// Providers missing from the list sort after listed ones.
	unknown := candidate("somewhere", "en", 2000, 3000, 100)
	assert.True(t, Better(a, unknown, s))
	assert.False(t, Better(unknown, a, s))
}

func TestDedupeByURL(t *testing.T) {
	a := candidate("tmdb", "en", 2000, 3000, 100)
	b := candidate("tmdb", "en", 2000, 3000, 50)
	b.SourceURL = a.SourceURL

	out := Dedupe([]*models.AssetCandidate{a, b}, enStrategy())
	require.Len(t, out, 1)
	assert.Equal(t, 100, *out[0].Votes, "higher-voted duplicate survives")
}

func TestDedupeByDimensionsAndSize(t *testing.T) {
	a := candidate("tmdb", "en", 2000, 3000, 100)
	a.ByteSize = i64ptr(123456)
	b := candidate("fanarttv", "en", 2000, 3000, 90)
	b.ByteSize = i64ptr(123456)

	out := Dedupe([]*models.AssetCandidate{a, b}, enStrategy())
	require.Len(t, out, 1)
}

func TestDedupeByPerceptualHash(t *testing.T) {
	// One bit apart on both hashes: similarity 63/64 ≈ 0.984, above the
	// default-mode thresholds.
	h1 := imaging.FormatHash(0xF0F0F0F0F0F0F0F0)
	h2 := imaging.FormatHash(0xF0F0F0F0F0F0F0F1)

	a := candidate("tmdb", "en", 2000, 3000, 100)
	a.PerceptualHash, a.DifferenceHash = &h1, &h1
	b := candidate("fanarttv", "en", 1000, 1500, 90)
	b.PerceptualHash, b.DifferenceHash = &h2, &h2

	out := Dedupe([]*models.AssetCandidate{a, b}, enStrategy())
	require.Len(t, out, 1)
	assert.Equal(t, "tmdb", out[0].Provider, "higher tier duplicate survives")
}

func TestDedupeKeepsDistinctImages(t *testing.T) {
	h1 := imaging.FormatHash(0xFFFFFFFF00000000)
	h2 := imaging.FormatHash(0x00000000FFFFFFFF)

	a := candidate("tmdb", "en", 2000, 3000, 100)
	a.PerceptualHash, a.DifferenceHash = &h1, &h1
	b := candidate("fanarttv", "en", 1000, 1500, 90)
	b.PerceptualHash, b.DifferenceHash = &h2, &h2

	out := Dedupe([]*models.AssetCandidate{a, b}, enStrategy())
	assert.Len(t, out, 2)
}

func TestDedupeDifferentAssetTypesNeverCollapse(t *testing.T) {
	a := candidate("tmdb", "en", 2000, 3000, 100)
	b := candidate("tmdb", "en", 2000, 3000, 100)
	b.AssetType = models.AssetFanart
	b.SourceURL = a.SourceURL

	out := Dedupe([]*models.AssetCandidate{a, b}, enStrategy())
	assert.Len(t, out, 2)
}

func TestSelectPicksBestWithReason(t *testing.T) {
	best := candidate("fanarttv", "en", 2000, 3000, 500)
	worse := candidate("tmdb", "de", 500, 750, 10)

	sel := Select([]*models.AssetCandidate{worse, best}, enStrategy())
	require.NotNil(t, sel)
	assert.Equal(t, best, sel.Candidate)
	assert.Contains(t, sel.Reason, "Best quality in preferred language")
	assert.Equal(t, 1.0, sel.Score)
}

func TestSelectLowerTierReasonAndScore(t *testing.T) {
	only := candidate("tmdb", "de", 500, 750, 10)
	sel := Select([]*models.AssetCandidate{only}, enStrategy())
	require.NotNil(t, sel)
	assert.Contains(t, sel.Reason, "Best available")
	assert.Equal(t, 0.25, sel.Score)
}

func TestSelectEmpty(t *testing.T) {
	assert.Nil(t, Select(nil, enStrategy()))
}

func TestStrategyFromDefaults(t *testing.T) {
	s := StrategyFrom(nil)
	assert.Equal(t, "en", s.PreferredLanguage)
	assert.Equal(t, Presets["quality_first"], s.ProviderPriority)

	cfg := &models.SelectionStrategy{Preset: "speed_first", PreferredLanguage: "de"}
	s = StrategyFrom(cfg)
	assert.Equal(t, "de", s.PreferredLanguage)
	assert.Equal(t, Presets["speed_first"], s.ProviderPriority)

	cfg.ProviderPriority = []string{"omdb", "tmdb"}
	s = StrategyFrom(cfg)
	assert.Equal(t, []string{"omdb", "tmdb"}, s.ProviderPriority)
}
