package fluxkit

import "context"

// DoFirst returns a Publisher which runs fn synchronously on every
// subscription before subscribing to source. If fn fails or panics the
// subscriber receives the error and source is never subscribed.
//
// The returned publisher is Fuseable if source is.
func DoFirst[T any](source Publisher[T], fn func() error) Publisher[T] {
	df := doFirst[T]{source: source, fn: fn}
	if IsFuseable(source) {
		return &doFirstFuseable[T]{doFirst: df}
	}
	return &df
}

type doFirst[T any] struct {
	source Publisher[T]
	fn     func() error
}

func (d *doFirst[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	if err := Safely(d.fn); err != nil {
		ErrorTo(s, err)
		return
	}
	d.source.Subscribe(ctx, s)
}

// Scan implements the Scannable interface.
func (d *doFirst[T]) Scan(attr Attr) interface{} {
	switch attr {
	case AttrParent:
		return d.source
	case AttrRunStyle:
		return RunStyleSync
	}
	return nil
}

type doFirstFuseable[T any] struct {
	doFirst[T]
}

func (d *doFirstFuseable[T]) Fuseable() {}
