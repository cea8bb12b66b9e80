package fluxkit

import (
	"context"
	"fmt"

	"github.com/gokit/es"
)

//*****************************************************************
// Events
//*****************************************************************

// ErrorDropped is published when an error could not be delivered
// because the subscription already reached a terminal state.
type ErrorDropped struct {
	Err error
}

// ValueDiscarded is published when a value could not be delivered,
// for example because a failed resource cleanup replaced it with an error.
type ValueDiscarded struct {
	Value interface{}
}

// EventSubscription is returned by Watch and removes the watcher on Stop.
type EventSubscription interface {
	Stop()
}

//*****************************************************************
// Hooks
//*****************************************************************

// HooksConfig defines configuration for a Hooks instance.
type HooksConfig struct {
	// Logs receives a log line for every dropped error and discarded
	// value.
	//
	// Defaults to a LogrusLogs on the logrus standard logger.
	Logs Logs
}

func (hc *HooksConfig) init() {
	if hc.Logs == nil {
		hc.Logs = NewLogrusLogs()
	}
}

// Hooks is the side channel which receives errors and values that can no
// longer be attached to a live signal path. Every occurrence is logged and
// published to watchers, it is never silently swallowed.
//
// Hooks travel with the context given to Publisher.Subscribe, see WithHooks.
type Hooks struct {
	logs   Logs
	events *es.EventStream
}

// NewHooks returns a new instance of Hooks.
func NewHooks(config HooksConfig) *Hooks {
	config.init()
	return &Hooks{
		logs:   config.Logs,
		events: es.New(),
	}
}

var defaultHooks = NewHooks(HooksConfig{})

// DefaultHooks returns the process wide Hooks used when a context
// carries none.
func DefaultHooks() *Hooks {
	return defaultHooks
}

type hooksKey struct{}

// WithHooks returns a copy of ctx carrying h.
func WithHooks(ctx context.Context, h *Hooks) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, hooksKey{}, h)
}

// HooksFrom returns the Hooks carried by ctx or DefaultHooks.
func HooksFrom(ctx context.Context) *Hooks {
	if ctx != nil {
		if h, ok := ctx.Value(hooksKey{}).(*Hooks); ok && h != nil {
			return h
		}
	}
	return defaultHooks
}

// OnErrorDropped reports an error which could not be delivered downstream.
func (h *Hooks) OnErrorDropped(err error) {
	if err == nil {
		return
	}

	LogMsg("error dropped").Err("error", err).Write(ERROR, h.logs)
	h.events.Publish(ErrorDropped{Err: err})
}

// OnDiscard reports a value which could not be delivered downstream.
func (h *Hooks) OnDiscard(value interface{}) {
	LogMsg("value discarded").String("value", fmt.Sprintf("%v", value)).Write(DEBUG, h.logs)
	h.events.Publish(ValueDiscarded{Value: value})
}

// Logs returns the Logs used by giving Hooks.
func (h *Hooks) Logs() Logs {
	return h.logs
}

// Watch adds giving function as a receiver of ErrorDropped and
// ValueDiscarded events.
func (h *Hooks) Watch(fn func(interface{})) EventSubscription {
	return h.events.Subscribe(fn)
}
