package imaging

// Mode selects the duplicate-detection thresholds. Opaque artwork can use
// strict thresholds; heavily-transparent logos hash noisily and need leniency.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeDefault Mode = "default"
	ModeLenient Mode = "lenient"
)

// Thresholds for one mode: either single-hash similarity clears its strict
// bar, or the weighted combination clears the combined minimum.
type Thresholds struct {
	AHashStrict float64
	DHashStrict float64
	CombinedMin float64
}

var modeThresholds = map[Mode]Thresholds{
	ModeStrict:  {AHashStrict: 0.85, DHashStrict: 0.82, CombinedMin: 0.75},
	ModeDefault: {AHashStrict: 0.95, DHashStrict: 0.92, CombinedMin: 0.93},
	ModeLenient: {AHashStrict: 0.97, DHashStrict: 0.94, CombinedMin: 0.95},
}

// transparentLogoCutoff: below this foreground ratio an alpha image is
// treated as a logo-style cutout.
const transparentLogoCutoff = 0.35

// ThresholdsFor returns the threshold set for a mode.
func ThresholdsFor(mode Mode) Thresholds {
	if t, ok := modeThresholds[mode]; ok {
		return t
	}
	return modeThresholds[ModeDefault]
}

// AutoMode picks the comparison mode from image shape: strict for fully
// opaque images, lenient for heavily-transparent logos, default otherwise.
func AutoMode(a *Analysis) Mode {
	if a == nil {
		return ModeDefault
	}
	if !a.HasAlpha {
		return ModeStrict
	}
	if a.ForegroundRatio < transparentLogoCutoff {
		return ModeLenient
	}
	return ModeDefault
}

// AutoModePair combines two analyses; the more cautious (lenient) mode wins.
func AutoModePair(a, b *Analysis) Mode {
	ma, mb := AutoMode(a), AutoMode(b)
	rank := map[Mode]int{ModeStrict: 0, ModeDefault: 1, ModeLenient: 2}
	if rank[mb] > rank[ma] {
		return mb
	}
	return ma
}

// IsDuplicate decides whether two hashed images are near-duplicates under the
// given mode. Caller handles the identical-content-hash short circuit.
func IsDuplicate(a1, d1, a2, d2 uint64, mode Mode) bool {
	t := ThresholdsFor(mode)
	aSim := Similarity(a1, a2)
	dSim := Similarity(d1, d2)
	if aSim >= t.AHashStrict || dSim >= t.DHashStrict {
		return true
	}
	return 0.55*aSim+0.45*dSim >= t.CombinedMin
}
