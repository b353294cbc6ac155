// Package errdef defines the error taxonomy shared by every call boundary.
// Errors crossing out of the engine are structured values with a stable kind
// and code, never bare strings.
package errdef

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a failure class in the taxonomy.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindParsing           Kind = "parsing"
	KindOCR               Kind = "ocr"
	KindCache             Kind = "cache"
	KindImageProcessing   Kind = "image_processing"
	KindPlugin            Kind = "plugin"
	KindMissingDependency Kind = "missing_dependency"
	KindIO                Kind = "io"
	KindUnsupportedFormat Kind = "unsupported_format"
)

// kindCodes maps each kind to a stable numeric code so non-native callers can
// branch without string matching. Codes are append-only.
var kindCodes = map[Kind]int{
	KindValidation:        1,
	KindParsing:           2,
	KindOCR:               3,
	KindCache:             4,
	KindImageProcessing:   5,
	KindPlugin:            6,
	KindMissingDependency: 7,
	KindIO:                8,
	KindUnsupportedFormat: 9,
}

// Code returns the stable numeric code for a kind, or 0 for an unknown kind.
func (k Kind) Code() int { return kindCodes[k] }

// Error is the structured error value used across the engine.
type Error struct {
	Kind       Kind           `json:"kind"`
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	PluginName string         `json:"pluginName,omitempty"`
	Dependency string         `json:"dependency,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Trace      string         `json:"trace,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.PluginName != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.PluginName, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithContext attaches a structured context entry and returns the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Code: kind.Code(), Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an underlying error. A nil err returns nil.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Code:    kind.Code(),
		Message: fmt.Sprintf("%s: %v", message, err),
		cause:   err,
	}
}

// Plugin wraps a failure raised inside a host-supplied plugin callback.
func Plugin(name string, err error) *Error {
	e := Wrap(KindPlugin, err, fmt.Sprintf("plugin %q failed", name))
	if e != nil {
		e.PluginName = name
	}
	return e
}

// MissingDependency reports an unavailable external dependency by name.
func MissingDependency(dependency, message string) *Error {
	e := New(KindMissingDependency, message)
	e.Dependency = dependency
	return e
}

// KindOf extracts the kind from any error. Errors that do not carry a
// structured kind fall back to the heuristic message classifier.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ClassifyMessage(err.Error())
}

// AsError normalizes any error into a structured *Error, classifying
// unstructured failures by message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(ClassifyMessage(err.Error()), err, "unclassified failure")
}

// MarshalErr serializes any error into the boundary JSON shape.
func MarshalErr(err error) ([]byte, error) {
	return json.Marshal(AsError(err))
}
