package fluxkit

// Attr defines a diagnostic attribute a component may expose for
// monitoring tools. Scanning never changes behaviour.
type Attr uint8

// constants of attributes.
const (
	AttrTerminated Attr = iota + 1
	AttrCancelled
	AttrParent
	AttrRunStyle
	AttrName
	AttrCapacity
	AttrBuffered
)

// RunStyle describes whether a component signals on the subscribing
// goroutine or may hop goroutines.
type RunStyle uint8

// constants of run styles.
const (
	RunStyleUnknown RunStyle = iota
	RunStyleSync
	RunStyleAsync
)

// Scannable is implemented by components exposing diagnostic attributes.
// Scan returns nil for attributes it does not know.
type Scannable interface {
	Scan(Attr) interface{}
}
