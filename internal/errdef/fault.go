package errdef

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Fault records an unrecoverable runtime fault captured at a supervising
// boundary. The last fault is retained for post-mortem diagnostics.
type Fault struct {
	Value      string    `json:"value"`
	Stack      string    `json:"stack"`
	CapturedAt time.Time `json:"capturedAt"`
}

var lastFault atomic.Pointer[Fault]

// LastFault returns the most recently captured runtime fault, or nil if no
// fault has been captured in this process.
func LastFault() *Fault {
	return lastFault.Load()
}

// CapturePanic converts a recovered panic value into a structured error and
// records it as the last fault. The panic value's message is classified the
// same way free-text errors are, so e.g. an OCR engine fault still reports as
// KindOCR.
func CapturePanic(recovered any) *Error {
	stack := string(debug.Stack())
	fault := &Fault{
		Value:      fmt.Sprint(recovered),
		Stack:      stack,
		CapturedAt: time.Now(),
	}
	lastFault.Store(fault)

	var kind Kind
	if err, ok := recovered.(error); ok {
		kind = KindOf(err)
	} else {
		kind = ClassifyMessage(fault.Value)
	}
	e := Newf(kind, "runtime fault: %v", recovered)
	e.Trace = stack
	return e
}

// Guard runs fn under a supervising boundary: a panic inside fn is captured
// and returned as a structured error instead of unwinding the caller.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = CapturePanic(r)
		}
	}()
	return fn()
}
