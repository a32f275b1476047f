package raster

import (
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	captionFont     *opentype.Font
	captionFontErr  error
	captionFontOnce sync.Once
)

func parsedFont() (*opentype.Font, error) {
	captionFontOnce.Do(func() {
		captionFont, captionFontErr = opentype.Parse(goregular.TTF)
	})
	return captionFont, captionFontErr
}

// captionSize returns the font size in pixels for an image height.
func captionSize(height int) float64 {
	return max(10, float64(height)/40)
}

// drawCaption renders text in white with a one-pixel black shadow, inset
// from the bottom-left corner.
func drawCaption(dst *image.NRGBA, text string) error {
	f, err := parsedFont()
	if err != nil {
		return err
	}
	size := captionSize(dst.Bounds().Dy())
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}
	defer func() { _ = face.Close() }()

	margin := int(size / 2)
	baseline := dst.Bounds().Dy() - margin - face.Metrics().Descent.Ceil()
	d := &font.Drawer{Dst: dst, Face: face}

	d.Src = image.Black
	d.Dot = fixed.P(margin+1, baseline+1)
	d.DrawString(text)

	d.Src = image.White
	d.Dot = fixed.P(margin, baseline)
	d.DrawString(text)
	return nil
}
