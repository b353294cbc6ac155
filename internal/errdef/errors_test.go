package errdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCodesAreStable(t *testing.T) {
	assert.Equal(t, 1, KindValidation.Code())
	assert.Equal(t, 3, KindOCR.Code())
	assert.Equal(t, 9, KindUnsupportedFormat.Code())
	assert.Equal(t, 0, Kind("bogus").Code())
}

func TestErrorJSONRoundTrip(t *testing.T) {
	orig := Plugin("my-validator", errors.New("boom"))
	orig.WithContext("source", "validate")

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded Error
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindPlugin, decoded.Kind)
	assert.Equal(t, KindPlugin.Code(), decoded.Code)
	assert.Equal(t, "my-validator", decoded.PluginName)
	assert.Equal(t, "validate", decoded.Context["source"])
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := Wrap(KindIO, cause, "reading input")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindIO, KindOf(wrapped))

	// Wrapping through fmt.Errorf keeps the kind reachable.
	outer := fmt.Errorf("outer layer: %w", wrapped)
	assert.Equal(t, KindIO, KindOf(outer))
}

func TestClassifyMessage(t *testing.T) {
	cases := map[string]Kind{
		"open /tmp/x: permission denied":     KindIO,
		"xlsx parse error: unexpected token": KindParsing,
		"mime type not supported":            KindUnsupportedFormat,
		"tesseract exited with status 1":     KindOCR,
		"cache write failed":                 KindCache,
		"something entirely novel happened":  KindParsing,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyMessage(msg), msg)
	}
}

func TestGuardCapturesPanic(t *testing.T) {
	err := Guard(func() error {
		panic("index out of range in parser")
	})
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.NotEmpty(t, e.Trace)

	fault := LastFault()
	require.NotNil(t, fault)
	assert.Contains(t, fault.Value, "index out of range")
	assert.NotEmpty(t, fault.Stack)
}

func TestGuardPassesThroughErrors(t *testing.T) {
	want := New(KindValidation, "rejected")
	err := Guard(func() error { return want })
	assert.Equal(t, want, err)
}
