// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded images: profile photos, event
// banners and organization logos. Uploads are re-encoded (stripping
// EXIF), auto-rotated from the orientation tag, and resized into a full
// size and a thumbnail per image kind.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Kind selects the resize profile for an upload.
type Kind string

const (
	KindProfile Kind = "profiles"
	KindEvent   Kind = "events"
	KindOrgLogo Kind = "orgs"
)

// spec defines the full-size and thumbnail dimensions for a kind.
type spec struct {
	fullW, fullH   int
	thumbW, thumbH int
	cropThumb      bool
}

var kindSpecs = map[Kind]spec{
	KindProfile: {fullW: 800, fullH: 800, thumbW: 160, thumbH: 160, cropThumb: true},
	KindEvent:   {fullW: 1600, fullH: 900, thumbW: 480, thumbH: 270, cropThumb: true},
	KindOrgLogo: {fullW: 600, fullH: 600, thumbW: 120, thumbH: 120, cropThumb: false},
}

// Result describes the stored files for a processed upload.
type Result struct {
	Path      string // relative to the uploads dir
	ThumbPath string
	Width     int
	Height    int
	Size      int64
}

// Processor stores normalized images under an uploads directory.
type Processor struct {
	uploadsDir string
}

// NewProcessor creates an image processor rooted at uploadsDir.
func NewProcessor(uploadsDir string) *Processor {
	return &Processor{uploadsDir: uploadsDir}
}

// Process reads an upload, normalizes it, and writes the full image and
// thumbnail under <kind>/<id>/. The returned paths are relative to the
// uploads dir so they can be stored directly in the database.
func (p *Processor) Process(reader io.Reader, kind Kind, id string) (*Result, error) {
	sp, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown image kind %q", kind)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("unsupported image format")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	full := imaging.Fit(img, sp.fullW, sp.fullH, imaging.Lanczos)

	var thumb image.Image
	if sp.cropThumb {
		thumb = imaging.Fill(img, sp.thumbW, sp.thumbH, imaging.Center, imaging.Lanczos)
	} else {
		thumb = imaging.Fit(img, sp.thumbW, sp.thumbH, imaging.Lanczos)
	}

	fullBytes, err := encodeImage(full, format, 90)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	thumbBytes, err := encodeImage(thumb, format, 85)
	if err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}

	// WebP input is re-encoded as JPEG (no pure-Go WebP encoder).
	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}

	relDir := filepath.Join(string(kind), id)
	fullRel := filepath.Join(relDir, "full"+ext)
	thumbRel := filepath.Join(relDir, "thumb"+ext)

	if err := p.saveFile(fullRel, fullBytes); err != nil {
		return nil, err
	}
	if err := p.saveFile(thumbRel, thumbBytes); err != nil {
		return nil, err
	}

	bounds := full.Bounds()
	return &Result{
		Path:      fullRel,
		ThumbPath: thumbRel,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Size:      int64(len(fullBytes)),
	}, nil
}

// Delete removes the stored files for an upload.
func (p *Processor) Delete(kind Kind, id string) error {
	dir := filepath.Join(p.uploadsDir, string(kind), filepath.Base(id))
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting image files: %w", err)
	}
	return nil
}

// IsSupportedType reports whether the MIME type can be processed.
func IsSupportedType(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// DetectMimeType sniffs the MIME type of image data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// readExifOrientation reads the EXIF orientation tag, defaulting to 1.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies the EXIF orientation transform.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes img as JPEG or PNG. Every other input format is
// flattened to JPEG.
func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes. TIFF is
// rejected (CVE-2023-36308 in disintegration/imaging).
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// saveFile writes data under the uploads dir, rejecting path traversal.
func (p *Processor) saveFile(relPath string, data []byte) error {
	clean := filepath.Clean(relPath)
	if strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid image path")
	}

	absBase, err := filepath.Abs(p.uploadsDir)
	if err != nil {
		return fmt.Errorf("resolving uploads dir: %w", err)
	}

	target := filepath.Join(absBase, clean)
	rel, err := filepath.Rel(absBase, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}
