package publishers

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Fanout delivers each event to all publishers concurrently. A slow sink
// delays the call but never blocks delivery to the others.
type Fanout struct {
	publishers []Publisher
}

// NewFanout drops nil entries and keeps the rest in order.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish returns how many publishers accepted evt, with the joined failures
// of the rest.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f.Size() == 0 {
		return 0, nil
	}

	errs := make([]error, len(f.publishers))
	var wg sync.WaitGroup
	for i, p := range f.publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(ctx, evt); err != nil {
				errs[i] = fmt.Errorf("%s publisher %q: %w", p.Type(), p.ID(), err)
			}
		}()
	}
	wg.Wait()

	delivered := 0
	for _, err := range errs {
		if err == nil {
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

// Size is the number of publishers events go to.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close releases publishers that hold connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}

func closeAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		c, ok := p.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher %q: %w", p.Type(), p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
