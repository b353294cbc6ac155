package ocr

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
)

// Preprocess applies the configured image cleanup steps before OCR and
// returns the image re-encoded as PNG. Steps run in a fixed order: grayscale,
// contrast normalization, denoise, sharpen, rotate.
func Preprocess(data []byte, cfg *types.PreprocessConfig) ([]byte, error) {
	if cfg == nil {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindImageProcessing, err, "decode image")
	}

	out := imaging.Clone(img)
	if cfg.Grayscale {
		out = imaging.Grayscale(out)
	}
	if cfg.ContrastNormalize {
		out = imaging.AdjustContrast(out, 20)
	}
	if cfg.DenoiseSigma > 0 {
		out = imaging.Blur(out, cfg.DenoiseSigma)
	}
	if cfg.SharpenSigma > 0 {
		out = imaging.Sharpen(out, cfg.SharpenSigma)
	}
	if cfg.RotateAngle != 0 {
		out = imaging.Rotate(out, cfg.RotateAngle, color.White)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, errdef.Wrap(errdef.KindImageProcessing, err, "encode image")
	}
	return buf.Bytes(), nil
}
