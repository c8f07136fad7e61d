package imaging

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"math/bits"
	"strconv"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Analysis holds everything the processor derives from one image.
type Analysis struct {
	AHash           uint64
	DHash           uint64
	Width           int
	Height          int
	HasAlpha        bool
	ForegroundRatio float64 // opaque-pixel fraction; 1.0 when no alpha channel
	AspectRatio     float64
	LowVariance     bool
}

// lowVarianceThreshold is the gray-value variance (on the 8x8 grid) below
// which an image is considered effectively solid color.
const lowVarianceThreshold = 4.0

// alphaOpaqueCutoff: pixels with alpha above this count as foreground.
const alphaOpaqueCutoff = 0x8000

// AnalyzeBytes decodes the image and computes the full analysis.
func AnalyzeBytes(data []byte) (*Analysis, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return Analyze(img), nil
}

// Analyze computes perceptual hashes and shape statistics for an image.
func Analyze(img image.Image) *Analysis {
	b := img.Bounds()
	a := &Analysis{
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	if a.Height > 0 {
		a.AspectRatio = float64(a.Width) / float64(a.Height)
	}

	a.HasAlpha, a.ForegroundRatio = alphaStats(img)

	gray8 := grayGrid(img, 8, 8)
	mean, variance := meanVariance(gray8)
	if variance < lowVarianceThreshold {
		// Solid-color image: a structural hash would be all noise. Use a
		// canonical hash derived from the mean pixel value so identical
		// solid colors still match each other.
		a.LowVariance = true
		a.AHash = canonicalHash(mean)
		a.DHash = canonicalHash(mean)
		return a
	}

	a.AHash = averageHash(gray8, mean)
	a.DHash = differenceHash(grayGrid(img, 9, 8))
	return a
}

// averageHash sets one bit per cell above the mean of the 8x8 grid.
func averageHash(grid []float64, mean float64) uint64 {
	var h uint64
	for i, v := range grid {
		if v > mean {
			h |= 1 << uint(63-i)
		}
	}
	return h
}

// differenceHash compares horizontal neighbors on a 9x8 grid.
func differenceHash(grid []float64) uint64 {
	var h uint64
	bit := 0
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if grid[row*9+col] < grid[row*9+col+1] {
				h |= 1 << uint(63-bit)
			}
			bit++
		}
	}
	return h
}

// canonicalHash spreads the mean gray value across all eight bytes.
func canonicalHash(mean float64) uint64 {
	b := uint64(math.Round(mean))
	if b > 255 {
		b = 255
	}
	return b * 0x0101010101010101
}

// grayGrid box-samples the image down to cols x rows gray values (0..255).
func grayGrid(img image.Image, cols, rows int) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	grid := make([]float64, cols*rows)
	if w == 0 || h == 0 {
		return grid
	}
	for gy := 0; gy < rows; gy++ {
		y0 := b.Min.Y + gy*h/rows
		y1 := b.Min.Y + (gy+1)*h/rows
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for gx := 0; gx < cols; gx++ {
			x0 := b.Min.X + gx*w/cols
			x1 := b.Min.X + (gx+1)*w/cols
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum, n float64
			for y := y0; y < y1 && y < b.Max.Y; y++ {
				for x := x0; x < x1 && x < b.Max.X; x++ {
					r, g, bl, _ := img.At(x, y).RGBA()
					// ITU-R BT.601 luma, scaled back to 0..255
					sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257.0
					n++
				}
			}
			if n > 0 {
				grid[gy*cols+gx] = sum / n
			}
		}
	}
	return grid
}

func meanVariance(grid []float64) (mean, variance float64) {
	if len(grid) == 0 {
		return 0, 0
	}
	for _, v := range grid {
		mean += v
	}
	mean /= float64(len(grid))
	for _, v := range grid {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(grid))
	return mean, variance
}

// alphaStats reports whether the image carries an alpha channel and what
// fraction of pixels are opaque. Sampled on a coarse grid for speed.
func alphaStats(img image.Image) (hasAlpha bool, foreground float64) {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.Paletted:
	default:
		return false, 1.0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return false, 1.0
	}
	const samples = 32
	var total, opaque, translucent int
	for sy := 0; sy < samples; sy++ {
		y := b.Min.Y + sy*h/samples
		for sx := 0; sx < samples; sx++ {
			x := b.Min.X + sx*w/samples
			_, _, _, alpha := img.At(x, y).RGBA()
			total++
			if alpha >= alphaOpaqueCutoff {
				opaque++
			}
			if alpha < 0xffff {
				translucent++
			}
		}
	}
	if translucent == 0 {
		return false, 1.0
	}
	return true, float64(opaque) / float64(total)
}

// Similarity returns 1 - hamming(h1,h2)/64.
func Similarity(h1, h2 uint64) float64 {
	return 1.0 - float64(bits.OnesCount64(h1^h2))/64.0
}

// FormatHash renders a 64-bit hash as a 16-char hex string.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHash parses a 16-hex-char hash string.
func ParseHash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
