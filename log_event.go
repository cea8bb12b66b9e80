package fluxkit

import (
	"strconv"
	"sync"
	"sync/atomic"
)

//*****************************************************************
// LogEvent
//*****************************************************************

var (
	comma        = []byte(",")
	colon        = []byte(":")
	space        = []byte(" ")
	openBlock    = []byte("{")
	closingBlock = []byte("}")
	doubleQuote  = []byte("\"")
	logEventPool = sync.Pool{
		New: func() interface{} {
			return &LogEvent{content: make([]byte, 0, 218), r: 1}
		},
	}
)

// LogMsg requests allocation for a *LogEvent from the internal pool returning a *LogEvent for use
// which must be have it's Write() or Message() method called once done.
func LogMsg(message string) *LogEvent {
	event := logEventPool.Get().(*LogEvent)
	event.reset()
	event.addQuoted("message", message)
	event.endEntry()
	return event
}

// LogEvent builds a flat JSON object out of key-value pairs with as few
// allocations as possible.
//
// Each *LogEvent is retrieved from a pool and will panic if used after Write or Message.
type LogEvent struct {
	r       uint32
	content []byte
}

// String adds a field name with string value.
func (l *LogEvent) String(name string, value string) *LogEvent {
	quoted := strconv.Quote(value)
	l.addQuoted(name, quoted[1:len(quoted)-1])
	l.endEntry()
	return l
}

// Err adds a field name with the message of the error, a nil error is
// written as null.
func (l *LogEvent) Err(name string, err error) *LogEvent {
	if err == nil {
		l.addRaw(name, "null")
		l.endEntry()
		return l
	}
	return l.String(name, err.Error())
}

// Bool adds a field name with bool value.
func (l *LogEvent) Bool(name string, value bool) *LogEvent {
	l.addRaw(name, strconv.FormatBool(value))
	l.endEntry()
	return l
}

// Int adds a field name with int value.
func (l *LogEvent) Int(name string, value int) *LogEvent {
	l.addRaw(name, strconv.Itoa(value))
	l.endEntry()
	return l
}

// Int64 adds a field name with int64 value.
func (l *LogEvent) Int64(name string, value int64) *LogEvent {
	l.addRaw(name, strconv.FormatInt(value, 10))
	l.endEntry()
	return l
}

// With applies giving function to the log event object.
func (l *LogEvent) With(handler func(event *LogEvent)) *LogEvent {
	handler(l)
	return l
}

// Message returns the generated JSON of giving *LogEvent and releases
// it back into the pool.
func (l *LogEvent) Message() string {
	if l.released() {
		panic("Re-using released *LogEvent")
	}

	// remove last comma and space
	l.reduce(len(comma) + len(space))
	l.end()

	content := string(l.content)
	l.content = l.content[:0]
	l.release()
	return content
}

// Write delivers giving log event as a generated message.
func (l *LogEvent) Write(ll Level, lg Logs) {
	lg.Emit(ll, Message(l.Message()))
}

func (l *LogEvent) reset() {
	atomic.StoreUint32(&l.r, 1)
	l.content = append(l.content[:0], openBlock...)
}

func (l *LogEvent) reduce(d int) {
	rem := len(l.content) - d
	if rem < 0 {
		rem = 0
	}
	l.content = l.content[:rem]
}

func (l *LogEvent) released() bool {
	return atomic.LoadUint32(&l.r) == 0
}

func (l *LogEvent) release() {
	atomic.StoreUint32(&l.r, 0)
	logEventPool.Put(l)
}

func (l *LogEvent) addQuoted(k string, v string) {
	if l.released() {
		panic("Re-using released *LogEvent")
	}

	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, k...)
	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, colon...)
	l.content = append(l.content, space...)
	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, v...)
	l.content = append(l.content, doubleQuote...)
}

func (l *LogEvent) addRaw(k string, v string) {
	if l.released() {
		panic("Re-using released *LogEvent")
	}

	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, k...)
	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, colon...)
	l.content = append(l.content, space...)
	l.content = append(l.content, v...)
}

func (l *LogEvent) endEntry() {
	l.content = append(l.content, comma...)
	l.content = append(l.content, space...)
}

func (l *LogEvent) end() {
	l.content = append(l.content, closingBlock...)
}
