package recording

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailBase64ScalesDown(t *testing.T) {
	data := solidPNG(t, 640, 480, color.RGBA{200, 10, 10, 255})

	encoded, err := ThumbnailBase64(data, 160)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
}

func TestThumbnailBase64RejectsGarbage(t *testing.T) {
	_, err := ThumbnailBase64([]byte("not a png"), 100)
	assert.Error(t, err)
}

func TestRecorderSavesGIF(t *testing.T) {
	r := NewRecorder(Options{MaxWidth: 50})
	require.NoError(t, r.AddPNG(solidPNG(t, 100, 60, color.White)))
	require.NoError(t, r.AddPNG(solidPNG(t, 100, 60, color.Black)))
	assert.Equal(t, 2, r.Len())

	path := filepath.Join(t.TempDir(), "run.gif")
	require.NoError(t, r.Save(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, 80, g.Delay[0])
	assert.Equal(t, 50, g.Image[0].Bounds().Dx())
}

func TestRecorderSaveWithoutFrames(t *testing.T) {
	r := NewRecorder(Options{})
	assert.Error(t, r.Save(filepath.Join(t.TempDir(), "empty.gif")))
}

func TestBuildPaletteIsFull(t *testing.T) {
	img, err := Decode(solidPNG(t, 8, 8, color.RGBA{1, 2, 3, 255}))
	require.NoError(t, err)
	p := buildPalette(img)
	assert.Len(t, p, 256)
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, p[1])
}
