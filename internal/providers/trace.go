package providers

import (
	"context"
	"strings"
	"sync"
)

type traceKey struct{}

// Trace collects the names of providers that answered calls made with its
// context. The refresh audit log uses it to record the endpoint that served
// a refresh without callers depending on which provider answered.
type Trace struct {
	mu   sync.Mutex
	seen []string
}

// WithTrace returns a context carrying a new Trace
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	t := &Trace{}
	return context.WithValue(ctx, traceKey{}, t), t
}

// TraceFrom returns the context's Trace or nil. A nil Trace ignores records.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

func (t *Trace) record(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.seen {
		if s == name {
			return
		}
	}
	t.seen = append(t.seen, name)
}

// Providers returns the distinct providers that answered, in first-use order
func (t *Trace) Providers() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.seen...)
}

// String joins the provider names with commas
func (t *Trace) String() string {
	return strings.Join(t.Providers(), ",")
}
