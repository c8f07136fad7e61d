package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JustinTDCT/MediaForge/internal/imaging"
	"github.com/JustinTDCT/MediaForge/internal/models"
)

// Strategy configures selection for one asset type.
type Strategy struct {
	PreferredLanguage string
	ProviderPriority  []string
}

// Presets for provider ordering, applied when no explicit priority is set.
var Presets = map[string][]string{
	"quality_first": {"fanarttv", "tmdb", "tvdb", "omdb"},
	"speed_first":   {"tmdb", "omdb", "fanarttv", "tvdb"},
	"tmdb_primary":  {"tmdb", "fanarttv", "omdb", "tvdb"},
	"tvdb_primary":  {"tvdb", "fanarttv", "tmdb", "omdb"},
}

// StrategyFrom builds a Strategy from the stored per-asset-type config.
func StrategyFrom(cfg *models.SelectionStrategy) Strategy {
	s := Strategy{PreferredLanguage: "en"}
	if cfg == nil {
		s.ProviderPriority = Presets["quality_first"]
		return s
	}
	if cfg.PreferredLanguage != "" {
		s.PreferredLanguage = cfg.PreferredLanguage
	}
	if len(cfg.ProviderPriority) > 0 {
		s.ProviderPriority = cfg.ProviderPriority
	} else if p, ok := Presets[cfg.Preset]; ok {
		s.ProviderPriority = p
	} else {
		s.ProviderPriority = Presets["quality_first"]
	}
	return s
}

// Selection is the winner for one asset slot.
type Selection struct {
	Candidate *models.AssetCandidate
	Reason    string
	Score     float64
}

// hdQualityHints are the quality markers that count as HD, compared
// case-insensitively.
var hdQualityHints = []string{"hd", "bluray", "4k", "uhd", "1080p", "2160p"}

// ──────────────────── Tiering ────────────────────

// LanguageFit scores a candidate's language against the preferred one:
// exact match 1.0, absent/neutral 0.5, anything else 0.0.
func LanguageFit(lang *string, preferred string) float64 {
	if lang == nil || *lang == "" || *lang == "00" {
		return 0.5
	}
	if strings.EqualFold(*lang, preferred) {
		return 1.0
	}
	return 0.0
}

// IsHD reports whether a candidate qualifies as high definition.
func IsHD(c *models.AssetCandidate) bool {
	if c.Width != nil && *c.Width >= 1920 {
		return true
	}
	if c.Height != nil && *c.Height >= 1920 {
		return true
	}
	if c.QualityHint != nil {
		hint := strings.ToLower(*c.QualityHint)
		for _, h := range hdQualityHints {
			if strings.Contains(hint, h) {
				return true
			}
		}
	}
	return false
}

// Tier buckets a candidate 1-4 from language fit and HD quality. A fit of
// at least 0.5 counts as "preferred".
func Tier(c *models.AssetCandidate, preferredLanguage string) int {
	preferred := LanguageFit(c.Language, preferredLanguage) >= 0.5
	hd := IsHD(c)
	switch {
	case preferred && hd:
		return 1
	case preferred:
		return 2
	case hd:
		return 3
	default:
		return 4
	}
}

// ──────────────────── Comparison ────────────────────

// providerIndex returns the candidate provider's position in the priority
// list; providers missing from the list sort after all listed ones.
func providerIndex(provider string, priority []string) int {
	for i, p := range priority {
		if p == provider {
			return i
		}
	}
	return len(priority)
}

// Better reports whether a beats b under the lexicographic ordering:
// tier, then significantly-higher votes, then significantly-larger area,
// then provider priority.
func Better(a, b *models.AssetCandidate, strategy Strategy) bool {
	ta, tb := Tier(a, strategy.PreferredLanguage), Tier(b, strategy.PreferredLanguage)
	if ta != tb {
		return ta < tb
	}

	if a.Votes != nil && b.Votes != nil {
		va, vb := float64(*a.Votes), float64(*b.Votes)
		min := va
		if vb < min {
			min = vb
		}
		diff := va - vb
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.5*min {
			return va > vb
		}
	}

	areaA, areaB := float64(a.PixelArea()), float64(b.PixelArea())
	if areaA > 0 && areaB > 0 {
		min := areaA
		if areaB < min {
			min = areaB
		}
		diff := areaA - areaB
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.1*min {
			return areaA > areaB
		}
	}

	return providerIndex(a.Provider, strategy.ProviderPriority) < providerIndex(b.Provider, strategy.ProviderPriority)
}

// SortCandidates orders candidates best-first in place under the strategy.
func SortCandidates(candidates []*models.AssetCandidate, strategy Strategy) {
	if len(strategy.ProviderPriority) == 0 {
		strategy.ProviderPriority = Presets["quality_first"]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return Better(candidates[i], candidates[j], strategy)
	})
}

// ──────────────────── Deduplication ────────────────────

// transparentAssetTypes hash noisily (alpha cutouts); compare leniently.
var transparentAssetTypes = map[models.AssetType]bool{
	models.AssetClearLogo:    true,
	models.AssetClearArt:     true,
	models.AssetDiscArt:      true,
	models.AssetCharacterArt: true,
}

func modeForAssetType(t models.AssetType) imaging.Mode {
	if transparentAssetTypes[t] {
		return imaging.ModeLenient
	}
	return imaging.ModeDefault
}

// isDuplicate applies the three duplicate rules: same URL, same exact
// dimensions+size, or perceptual-hash similarity within the mode thresholds.
// Identical content hashes always match.
func isDuplicate(a, b *models.AssetCandidate) bool {
	if a.AssetType != b.AssetType {
		return false
	}
	if a.SourceURL != "" && a.SourceURL == b.SourceURL {
		return true
	}
	if a.ContentHash != nil && b.ContentHash != nil && *a.ContentHash == *b.ContentHash {
		return true
	}
	if a.Width != nil && b.Width != nil && a.Height != nil && b.Height != nil &&
		a.ByteSize != nil && b.ByteSize != nil &&
		*a.Width == *b.Width && *a.Height == *b.Height && *a.ByteSize == *b.ByteSize {
		return true
	}
	if a.PerceptualHash != nil && b.PerceptualHash != nil &&
		a.DifferenceHash != nil && b.DifferenceHash != nil {
		ah1, err1 := imaging.ParseHash(*a.PerceptualHash)
		dh1, err2 := imaging.ParseHash(*a.DifferenceHash)
		ah2, err3 := imaging.ParseHash(*b.PerceptualHash)
		dh2, err4 := imaging.ParseHash(*b.DifferenceHash)
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			return imaging.IsDuplicate(ah1, dh1, ah2, dh2, modeForAssetType(a.AssetType))
		}
	}
	return false
}

// Dedupe collapses near-duplicate candidates, keeping the one that ranks
// best under the strategy.
func Dedupe(candidates []*models.AssetCandidate, strategy Strategy) []*models.AssetCandidate {
	var survivors []*models.AssetCandidate
	for _, c := range candidates {
		replaced := false
		dup := false
		for i, s := range survivors {
			if !isDuplicate(c, s) {
				continue
			}
			dup = true
			if Better(c, s, strategy) {
				survivors[i] = c
				replaced = true
			}
			break
		}
		if !dup && !replaced {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

// ──────────────────── Selection ────────────────────

// Select picks the best candidate for one asset slot and explains why.
// Returns nil when there are no candidates.
func Select(candidates []*models.AssetCandidate, strategy Strategy) *Selection {
	if len(strategy.ProviderPriority) == 0 {
		strategy.ProviderPriority = Presets["quality_first"]
	}
	unique := Dedupe(candidates, strategy)
	if len(unique) == 0 {
		return nil
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return Better(unique[i], unique[j], strategy)
	})

	winner := unique[0]
	tier := Tier(winner, strategy.PreferredLanguage)
	return &Selection{
		Candidate: winner,
		Reason:    reasonForTier(tier, winner),
		Score:     scoreForTier(tier),
	}
}

func reasonForTier(tier int, c *models.AssetCandidate) string {
	base := map[int]string{
		1: "Best quality in preferred language",
		2: "Preferred language",
		3: "Best quality",
		4: "Best available",
	}[tier]
	if c.Votes != nil && *c.Votes > 0 {
		return fmt.Sprintf("%s (%d votes, %s)", base, *c.Votes, c.Provider)
	}
	return fmt.Sprintf("%s (%s)", base, c.Provider)
}

// scoreForTier maps tiers onto a 0-1 display score.
func scoreForTier(tier int) float64 {
	return float64(5-tier) / 4.0
}
