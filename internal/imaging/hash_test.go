package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient builds a horizontal left-dark right-bright gradient.
func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (w - 1))})
		}
	}
	return img
}

func solid(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestAnalyzeGradient(t *testing.T) {
	a := Analyze(gradient(64, 32))
	require.NotNil(t, a)
	assert.Equal(t, 64, a.Width)
	assert.Equal(t, 32, a.Height)
	assert.InDelta(t, 2.0, a.AspectRatio, 0.01)
	assert.False(t, a.HasAlpha)
	assert.Equal(t, 1.0, a.ForegroundRatio)
	assert.False(t, a.LowVariance)
	// Right half brighter than mean: aHash has structure, not all-ones/zeros.
	assert.NotZero(t, a.AHash)
	assert.NotEqual(t, ^uint64(0), a.AHash)
	// dHash: every horizontal neighbor increases, so all 64 bits set.
	assert.Equal(t, ^uint64(0), a.DHash)
}

func TestScaledImagesHashAlike(t *testing.T) {
	small := Analyze(gradient(64, 64))
	large := Analyze(gradient(512, 512))
	assert.GreaterOrEqual(t, Similarity(small.AHash, large.AHash), 0.95)
	assert.GreaterOrEqual(t, Similarity(small.DHash, large.DHash), 0.95)
}

func TestLowVarianceCanonicalHash(t *testing.T) {
	a := Analyze(solid(100, 100, 200))
	b := Analyze(solid(50, 50, 200))
	c := Analyze(solid(100, 100, 10))

	require.True(t, a.LowVariance)
	assert.Equal(t, a.AHash, b.AHash)
	assert.NotEqual(t, a.AHash, c.AHash)
}

func TestAnalyzeBytesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(32, 32)))

	a, err := AnalyzeBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 32, a.Width)

	_, err = AnalyzeBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestAlphaStats(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	// Opaque square covering the top-left quarter; rest transparent.
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 && y < 20 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			}
		}
	}
	a := Analyze(img)
	assert.True(t, a.HasAlpha)
	assert.InDelta(t, 0.25, a.ForegroundRatio, 0.1)
}

func TestFormatParseHash(t *testing.T) {
	h := uint64(0xdeadbeef01020304)
	s := FormatHash(h)
	assert.Equal(t, "deadbeef01020304", s)
	assert.Len(t, FormatHash(1), 16)

	parsed, err := ParseHash(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0xffff, 0xffff))
	assert.Equal(t, 0.0, Similarity(0, ^uint64(0)))
	assert.InDelta(t, 63.0/64.0, Similarity(0, 1), 1e-9)
}
