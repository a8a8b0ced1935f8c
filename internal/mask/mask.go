// Package mask turns raw model scores into rendered mask images.
package mask

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// Bitmap is a row-major boolean object-presence map for one frame.
type Bitmap []bool

// FromLogits thresholds raw mask scores. Presence is a strict
// greater-than-zero test on the logit; zero is background.
func FromLogits(logits []float32) Bitmap {
	bm := make(Bitmap, len(logits))
	for i, v := range logits {
		bm[i] = v > 0
	}
	return bm
}

// Render composites object bitmaps for one frame into a white-on-black
// 3-channel PNG of the given dimensions. No bitmaps renders all-black.
func Render(width, height int, bitmaps []Bitmap) ([]byte, error) {
	img := imaging.New(width, height, color.Black)

	for _, bm := range bitmaps {
		if len(bm) != width*height {
			return nil, fmt.Errorf("bitmap size %d does not match %dx%d frame", len(bm), width, height)
		}
		for i, on := range bm {
			if !on {
				continue
			}
			off := i * 4
			img.Pix[off] = 0xff
			img.Pix[off+1] = 0xff
			img.Pix[off+2] = 0xff
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode mask png: %w", err)
	}
	return buf.Bytes(), nil
}
