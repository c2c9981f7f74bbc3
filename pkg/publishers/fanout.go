package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// eventFilter is implemented by publishers that only want some event types.
type eventFilter interface {
	Accepts(typ string) bool
}

type filteredPublisher struct {
	Publisher
	accept map[string]struct{}
}

// Filtered restricts p to the listed event types. An empty list leaves p unrestricted.
func Filtered(p Publisher, types []string) Publisher {
	if p == nil || len(types) == 0 {
		return p
	}
	accept := make(map[string]struct{}, len(types))
	for _, t := range types {
		accept[t] = struct{}{}
	}
	return &filteredPublisher{Publisher: p, accept: accept}
}

func (f *filteredPublisher) Accepts(typ string) bool {
	_, ok := f.accept[typ]
	return ok
}

func (f *filteredPublisher) Close() error {
	if c, ok := f.Publisher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Fanout delivers each event to every publisher interested in its type.
type Fanout struct {
	sinks []Publisher
}

// NewFanout drops nil entries from pubs.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{sinks: make([]Publisher, 0, len(pubs))}
	for _, p := range pubs {
		if p != nil {
			f.sinks = append(f.sinks, p)
		}
	}
	return f
}

// Publish returns how many publishers accepted the event. Every interested publisher is
// attempted; failures are joined into the returned error.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f.Size() == 0 {
		return 0, nil
	}

	delivered := 0
	var errs []error
	for _, p := range f.sinks {
		if filter, ok := p.(eventFilter); ok && !filter.Accepts(evt.Type) {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases publishers holding client resources.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.sinks)
}
