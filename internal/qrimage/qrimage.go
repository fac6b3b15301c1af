// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package qrimage extracts QR code payload text from images. It is a thin
// wrapper over the zxing port: detection heuristics beyond a try-harder
// retry belong to the detector, not to this package.
package qrimage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"

	// Image formats accepted by File.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExts = mapset.New(".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp")

// IsImage reports whether path names a supported image format, judged by
// its filename extension.
func IsImage(path string) bool {
	return imageExts.Has(strings.ToLower(filepath.Ext(path)))
}

// File decodes all QR codes found in the image file at path. The result
// preserves detection order with duplicates removed, and is empty without
// error if the image contains no detectable codes.
func File(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return Image(img), nil
}

// Image decodes all QR codes found in img.
func Image(img image.Image) []string {
	src := gozxing.NewLuminanceSourceFromImage(img)
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		return nil
	}

	var texts []string
	seen := mapset.New[string]()
	add := func(rs ...*gozxing.Result) {
		for _, r := range rs {
			if t := r.GetText(); t != "" && !seen.Has(t) {
				seen.Add(t)
				texts = append(texts, t)
			}
		}
	}

	// Multi-code detection first, then retry with the try-harder hint, then
	// fall back to single-code detection.
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	if rs, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, nil); err == nil {
		add(rs...)
	}
	if len(texts) == 0 {
		if rs, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, hints); err == nil {
			add(rs...)
		}
	}
	if len(texts) == 0 {
		if r, err := qrcode.NewQRCodeReader().Decode(bmp, hints); err == nil {
			add(r)
		}
	}
	return texts
}
