package types

// OCRElement is one recognized unit (word or line) with its confidence and
// geometry in pixel coordinates.
type OCRElement struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// OCRResult is the output of an OCR backend run over one image.
type OCRResult struct {
	Text     string       `json:"text"`
	Elements []OCRElement `json:"elements,omitempty"`
	// Rotation is the detected page rotation in degrees, if the backend
	// reports one.
	Rotation float64 `json:"rotation,omitempty"`
	Language string  `json:"language,omitempty"`
}

// MeanConfidence averages element confidences; 0 when no elements were
// reported.
func (r *OCRResult) MeanConfidence() float64 {
	if len(r.Elements) == 0 {
		return 0
	}
	var sum float64
	for _, el := range r.Elements {
		sum += el.Confidence
	}
	return sum / float64(len(r.Elements))
}
