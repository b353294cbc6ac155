package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	textracttypes "github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/kohlhaas/docintel/internal/types"
)

// textractAPI is the slice of the Textract client the backend uses.
type textractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// TextractBackend recognizes text through AWS Textract.
type TextractBackend struct {
	client        textractAPI
	minConfidence float32
}

// TextractConfig configures the AWS client.
type TextractConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

// NewTextractBackend creates the textract backend from static credentials.
func NewTextractBackend(ctx context.Context, cfg TextractConfig) (*TextractBackend, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &TextractBackend{
		client:        textract.NewFromConfig(awsCfg),
		minConfidence: cfg.MinConfidence,
	}, nil
}

func (t *TextractBackend) Name() string { return "textract" }

func (t *TextractBackend) SupportedLanguages() []string {
	return []string{"eng", "deu", "fra", "spa", "ita", "por"}
}

// ProcessImage sends the image to Textract and maps LINE blocks to elements.
// Textract reports geometry as page-relative ratios; they are scaled to
// pixels using the decoded image dimensions.
func (t *TextractBackend) ProcessImage(ctx context.Context, img []byte, language string) (*types.OCRResult, error) {
	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &textracttypes.Document{Bytes: img},
	})
	if err != nil {
		return nil, fmt.Errorf("detect document text: %w", err)
	}

	width, height := imageDimensions(img)

	result := &types.OCRResult{Language: language}
	var lines []string
	for _, block := range out.Blocks {
		if block.BlockType != textracttypes.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < t.minConfidence {
			continue
		}
		lines = append(lines, *block.Text)

		el := types.OCRElement{Text: *block.Text}
		el.Confidence = float64(aws.ToFloat32(block.Confidence))
		if block.Geometry != nil && block.Geometry.BoundingBox != nil && width > 0 {
			bb := block.Geometry.BoundingBox
			el.X = int(bb.Left * float32(width))
			el.Y = int(bb.Top * float32(height))
			el.Width = int(bb.Width * float32(width))
			el.Height = int(bb.Height * float32(height))
		}
		result.Elements = append(result.Elements, el)
	}
	result.Text = strings.Join(lines, "\n")
	return result, nil
}

func (t *TextractBackend) Shutdown() error { return nil }

func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
