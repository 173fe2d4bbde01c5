package imagex

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResize_KeepsAspectRatio(t *testing.T) {
	src := makePNG(t, 1000, 400)

	for _, tc := range []struct {
		width, height int
	}{
		{500, 200},
		{250, 100},
		{100, 40},
	} {
		out, err := Resize(src, tc.width)
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, tc.width, cfg.Width)
		assert.Equal(t, tc.height, cfg.Height)
	}
}

func TestResize_JPEGStaysJPEG(t *testing.T) {
	out, err := Resize(makeJPEG(t, 800, 600), 100)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 75, cfg.Height)
}

func TestResize_TinyHeightClampsToOne(t *testing.T) {
	out, err := Resize(makePNG(t, 1000, 1), 100)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Height)
}

func TestResize_Undecodable(t *testing.T) {
	_, err := Resize([]byte("hello, not an image"), 100)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestResize_InvalidWidth(t *testing.T) {
	_, err := Resize(makePNG(t, 10, 10), 0)
	assert.Error(t, err)
}

// pngHeader returns a PNG stream holding only the signature and an IHDR
// chunk for an 8-bit grayscale image of w x h pixels.
func pngHeader(w, h uint32) []byte {
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter, interlace are 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr[:]...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestResize_RejectsOversizedImage(t *testing.T) {
	src := pngHeader(12000, 12000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Width)

	_, err = Resize(src, 100)
	assert.ErrorIs(t, err, ErrUndecodable)
	assert.ErrorContains(t, err, "12000x12000")
}
