package raster

// EncodeOption configures EncodeAndSave.
type EncodeOption func(*options)

type options struct {
	scale   int
	caption string
	quality int
}

func defaultOptions() options {
	return options{scale: 1, quality: 90}
}

// WithScale downsamples the image by an integer factor before encoding.
// Factors below 2 leave the image at full size.
func WithScale(factor int) EncodeOption {
	return func(o *options) {
		if factor > 1 {
			o.scale = factor
		}
	}
}

// WithCaption draws text along the bottom-left edge of the image.
func WithCaption(text string) EncodeOption {
	return func(o *options) { o.caption = text }
}

// WithQuality sets the JPEG quality (1-100). Other formats ignore it.
func WithQuality(q int) EncodeOption {
	return func(o *options) { o.quality = min(max(q, 1), 100) }
}
