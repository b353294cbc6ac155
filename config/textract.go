package config

import "sync"

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
)

// TextractConfig holds credentials for the AWS Textract OCR backend. The
// backend is only registered when Enabled is set.
type TextractConfig struct {
	Enabled       bool
	Region        string
	AccessKey     string
	SecretKey     string
	MinConfidence float64
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()
		textractConfig = &TextractConfig{
			Enabled:       getEnvBool("TEXTRACT_ENABLED", false),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			AccessKey:     getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:     getEnv("AWS_SECRET_KEY", ""),
			MinConfidence: float64(getEnvInt("TEXTRACT_MIN_CONFIDENCE", 50)),
		}
	})
	return textractConfig
}
