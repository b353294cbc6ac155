package pipeline

import (
	"strings"
	"unicode"
)

// Quality weights. The score is a weighted heuristic over content length,
// printable-character ratio, and structural density.
const (
	weightLength    = 0.3
	weightPrintable = 0.4
	weightStructure = 0.3

	// lengthSaturation is the content length at which the length factor
	// reaches 1.
	lengthSaturation = 2000

	// warningPenalty is subtracted per recorded warning, floored at zero.
	warningPenalty = 0.1
)

// QualityScore computes a heuristic score in [0,1] for extracted content.
// Empty content scores zero.
func QualityScore(content string) float64 {
	if content == "" {
		return 0
	}

	runes := []rune(content)
	lengthFactor := float64(len(runes)) / lengthSaturation
	if lengthFactor > 1 {
		lengthFactor = 1
	}

	printable := 0
	for _, r := range runes {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	printableRatio := float64(printable) / float64(len(runes))

	return weightLength*lengthFactor +
		weightPrintable*printableRatio +
		weightStructure*structureDensity(content)
}

// structureDensity estimates how much recognizable structure the content
// carries: paragraph breaks, markdown headings, and list markers.
func structureDensity(content string) float64 {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return 0
	}
	structural := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			structural++ // paragraph separator
		case strings.HasPrefix(trimmed, "#"):
			structural++
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			structural++
		}
	}
	density := float64(structural) / float64(len(lines))
	// Fully blank output is not structure.
	if density > 0.5 {
		density = 0.5
	}
	return density * 2
}
