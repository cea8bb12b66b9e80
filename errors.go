package fluxkit

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/gokit/errors"
)

// errors ...
var (
	ErrInvalidRequest = errors.New("request demand must be positive")
	ErrNilPublisher   = errors.New("derived publisher is nil")
	ErrFutureTimeout  = errors.New("future timed out")
	ErrFutureResolved = errors.New("future is resolved")
)

//***********************************************************
// RequestError
//***********************************************************

// RequestError is delivered through OnError when a subscriber requests
// a non-positive amount of values.
type RequestError struct {
	N int64
}

// Error implements the error interface.
func (r *RequestError) Error() string {
	return fmt.Sprintf("invalid request of %d, demand must be positive", r.N)
}

// Unwrap returns ErrInvalidRequest.
func (r *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

//***********************************************************
// Fault
//***********************************************************

// Fault carries a primary error together with secondary errors which
// occurred while handling it, usually a failed resource cleanup.
type Fault struct {
	Err        error
	Suppressed []error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if len(f.Suppressed) == 0 {
		return f.Err.Error()
	}

	var sb strings.Builder
	sb.WriteString(f.Err.Error())
	for _, s := range f.Suppressed {
		sb.WriteString("; suppressed: ")
		sb.WriteString(s.Error())
	}
	return sb.String()
}

// Unwrap returns the primary error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// AddSuppressed attaches secondary to primary and returns a new *Fault.
// A primary *Fault is copied, never modified.
func AddSuppressed(primary error, secondary error) error {
	if secondary == nil {
		return primary
	}
	if primary == nil {
		return secondary
	}
	if f, ok := primary.(*Fault); ok {
		suppressed := make([]error, 0, len(f.Suppressed)+1)
		suppressed = append(suppressed, f.Suppressed...)
		return &Fault{Err: f.Err, Suppressed: append(suppressed, secondary)}
	}
	return &Fault{Err: primary, Suppressed: []error{secondary}}
}

// SuppressedOf returns the suppressed errors of the first *Fault found
// in err's chain.
func SuppressedOf(err error) []error {
	for err != nil {
		if f, ok := err.(*Fault); ok {
			return f.Suppressed
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

//***********************************************************
// PanicError
//***********************************************************

// PanicError wraps a recovered panic value with the stack of the
// goroutine which panicked.
type PanicError struct {
	Value interface{}
	Stack string
}

// Error implements the error interface.
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value if it was an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v interface{}) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// Safely runs fn turning a panic into a *PanicError.
func Safely(fn func() error) (err error) {
	defer func() {
		if reason := recover(); reason != nil {
			err = newPanicError(reason)
		}
	}()
	return fn()
}
