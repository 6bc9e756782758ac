package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// baseDPI is the PDF point resolution; render scale 1.0 maps to 72 DPI.
const baseDPI = 72

// maxPageDimension caps rendered page images so a high scale on an oversized
// page cannot produce payloads the inference backend rejects.
const maxPageDimension = 2200

// PopplerRenderer renders PDF pages to base64 PNGs with Poppler's pdftoppm,
// and passes plain image files through a decode/re-encode. It implements
// extract.PageRenderer.
type PopplerRenderer struct {
	logger *slog.Logger
}

func NewPopplerRenderer(logger *slog.Logger) *PopplerRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PopplerRenderer{logger: logger}
}

// PageCount probes the document's page count via pdfinfo. Plain images count
// as a single page.
func (r *PopplerRenderer) PageCount(ctx context.Context, path string) (int, error) {
	if !isPDF(path) {
		return 1, nil
	}
	cmd := exec.CommandContext(ctx, "pdfinfo", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w\noutput: %s", err, string(out))
	}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) != "Pages" {
			continue
		}
		pages, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("parse page count %q: %w", strings.TrimSpace(value), err)
		}
		return pages, nil
	}
	return 0, fmt.Errorf("pdfinfo output missing page count for %s", path)
}

// RenderPages renders up to maxPages pages at the given scale and returns
// them base64-encoded.
func (r *PopplerRenderer) RenderPages(ctx context.Context, path string, maxPages int, scale float64) ([]string, error) {
	if !isPDF(path) {
		b64, err := encodeImageFile(path)
		if err != nil {
			return nil, err
		}
		return []string{b64}, nil
	}

	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}

	pages, err := r.PageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	if pages > maxPages {
		pages = maxPages
	}

	tmpDir, err := os.MkdirTemp("", "entryagent-render-")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	out := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		outBase := filepath.Join(tmpDir, fmt.Sprintf("page-%d", page))
		cmd := exec.CommandContext(ctx, "pdftoppm", renderArgs(path, outBase, page, scale)...)
		if combined, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("pdftoppm page %d failed: %w\noutput: %s", page, err, string(combined))
		}
		b64, err := encodeImageFile(outBase + ".png")
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		out = append(out, b64)
	}

	r.logger.Info("render.pages",
		"file", filepath.Base(path),
		"pages", len(out),
		"scale", scale,
	)
	return out, nil
}

// renderArgs builds the pdftoppm argument list for a single page.
func renderArgs(input, outBase string, page int, scale float64) []string {
	dpi := int(baseDPI * scale)
	if dpi < baseDPI {
		dpi = baseDPI
	}
	p := strconv.Itoa(page)
	return []string{
		"-png",
		"-singlefile",
		"-f", p,
		"-l", p,
		"-r", strconv.Itoa(dpi),
		input,
		outBase,
	}
}

// encodeImageFile decodes an image, caps its dimensions, and returns it as
// base64 PNG.
func encodeImageFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxPageDimension || bounds.Dy() > maxPageDimension {
		img = imaging.Fit(img, maxPageDimension, maxPageDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
