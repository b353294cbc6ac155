package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/kohlhaas/docintel/internal/types"
)

// TesseractBackend recognizes text with a local Tesseract installation via
// gosseract. A fresh client is created per call; gosseract clients are not
// safe for concurrent use.
type TesseractBackend struct{}

// NewTesseractBackend creates the tesseract backend.
func NewTesseractBackend() *TesseractBackend { return &TesseractBackend{} }

func (t *TesseractBackend) Name() string { return "tesseract" }

func (t *TesseractBackend) SupportedLanguages() []string {
	return []string{"eng", "deu", "fra", "spa", "ita", "por", "nld", "chi_sim", "jpn", "kor"}
}

// ProcessImage runs recognition over one image and returns the text with
// per-word confidence and geometry.
func (t *TesseractBackend) ProcessImage(ctx context.Context, img []byte, language string) (*types.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if language == "" {
		language = defaultLanguage
	}
	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("set language %q: %w", language, err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	result := &types.OCRResult{Text: text, Language: language}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Geometry is best-effort; the text alone is still a valid result.
		return result, nil
	}
	result.Elements = make([]types.OCRElement, 0, len(boxes))
	for _, box := range boxes {
		result.Elements = append(result.Elements, types.OCRElement{
			Text:       box.Word,
			Confidence: box.Confidence,
			X:          box.Box.Min.X,
			Y:          box.Box.Min.Y,
			Width:      box.Box.Dx(),
			Height:     box.Box.Dy(),
		})
	}
	return result, nil
}

func (t *TesseractBackend) Shutdown() error { return nil }
