package extractor

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// ImageExtractor handles raster images. Images carry no recoverable text of
// their own; the result marks visual content and zero coverage so the OCR
// orchestrator takes over.
type ImageExtractor struct{}

func NewImageExtractor() *ImageExtractor { return &ImageExtractor{} }

func (i *ImageExtractor) Name() string { return "image" }

func (i *ImageExtractor) MediaTypes() []string {
	return []string{
		mediatype.JPEG,
		mediatype.PNG,
		mediatype.TIFF,
		mediatype.BMP,
		mediatype.GIF,
		mediatype.WebP,
	}
}

func (i *ImageExtractor) Extract(ctx context.Context, data []byte, mt string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	if mt == "" {
		mt = mediatype.PNG
	}
	result := types.NewResult(mt)
	result.HasVisualContent = true
	result.TextCoverage = 0

	icfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// TIFF and WebP are not registered decoders; dimensions are optional.
		if mt == mediatype.TIFF || mt == mediatype.WebP {
			return result, nil
		}
		return nil, errdef.Wrap(errdef.KindImageProcessing, err, "decode image header")
	}
	result.Metadata.Set("width", icfg.Width)
	result.Metadata.Set("height", icfg.Height)
	result.Metadata.Set("format", format)

	if cfg != nil && cfg.Images != nil && types.Bool(cfg.Images.Enabled, true) {
		if icfg.Width >= cfg.Images.MinWidth && icfg.Height >= cfg.Images.MinHeight {
			result.Images = append(result.Images, types.ExtractedImage{
				Data:   data,
				Format: format,
				Index:  0,
				Width:  icfg.Width,
				Height: icfg.Height,
			})
		}
	}
	return result, nil
}
