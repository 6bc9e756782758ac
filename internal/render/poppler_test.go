package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderArgs(t *testing.T) {
	args := renderArgs("/tmp/in.pdf", "/tmp/out/page-2", 2, 1.6)
	assert.Equal(t, []string{
		"-png", "-singlefile",
		"-f", "2", "-l", "2",
		"-r", "115", // 72 * 1.6
		"/tmp/in.pdf", "/tmp/out/page-2",
	}, args)
}

func TestRenderArgsFloorsDPI(t *testing.T) {
	args := renderArgs("in.pdf", "out", 1, 0.5)
	assert.Contains(t, args, "72", "scale below 1.0 must not drop under base DPI")
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("doc.pdf"))
	assert.True(t, isPDF("DOC.PDF"))
	assert.False(t, isPDF("scan.png"))
	assert.False(t, isPDF("archive.pdf.zip"))
}

func TestPageCountNonPDFIsOne(t *testing.T) {
	r := NewPopplerRenderer(nil)
	n, err := r.PageCount(context.Background(), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func TestRenderPagesPlainImage(t *testing.T) {
	r := NewPopplerRenderer(nil)
	path := writeTestPNG(t, 100, 60)

	pages, err := r.RenderPages(context.Background(), path, 2, 1.6)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	raw, err := base64.StdEncoding.DecodeString(pages[0])
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 60, cfg.Height)
}

func TestEncodeImageFileCapsDimensions(t *testing.T) {
	path := writeTestPNG(t, maxPageDimension+800, 400)

	b64, err := encodeImageFile(path)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, maxPageDimension)
	assert.LessOrEqual(t, cfg.Height, maxPageDimension)
}

func TestEncodeImageFileMissing(t *testing.T) {
	_, err := encodeImageFile(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}
