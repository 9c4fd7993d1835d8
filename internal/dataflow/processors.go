package dataflow

import (
	"context"
	"sync"
)

// Values returns a source that emits rows. With parallelism > 1, instance i
// emits the rows whose index modulo Count equals i.
func Values(rows []Row) Supplier {
	return func(pctx Context) (Processor, error) {
		return ProcessorFunc(func(ctx context.Context, _ <-chan Row, emit func(Row) error) error {
			for i, row := range rows {
				if i%pctx.Count != pctx.Index {
					continue
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := emit(row); err != nil {
					return err
				}
			}
			return nil
		}), nil
	}
}

// Map returns a transform built per instance by newFn. A nil output row is
// dropped.
func Map(newFn func(pctx Context) (func(Row) (Row, error), error)) Supplier {
	return func(pctx Context) (Processor, error) {
		fn, err := newFn(pctx)
		if err != nil {
			return nil, err
		}
		return ProcessorFunc(func(ctx context.Context, in <-chan Row, emit func(Row) error) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case row, ok := <-in:
					if !ok {
						return nil
					}
					out, err := fn(row)
					if err != nil {
						return err
					}
					if out == nil {
						continue
					}
					if err := emit(out); err != nil {
						return err
					}
				}
			}
		}), nil
	}
}

// Collector is a terminal vertex that gathers every row it receives.
type Collector struct {
	mu    sync.Mutex
	rows  []Row
	limit int
}

// NewCollector creates a collector. When limit > 0 the job is stopped as
// soon as limit rows have been collected.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// Supplier returns the collector's processor supplier.
func (c *Collector) Supplier() Supplier {
	return func(Context) (Processor, error) {
		return ProcessorFunc(func(ctx context.Context, in <-chan Row, _ func(Row) error) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case row, ok := <-in:
					if !ok {
						return nil
					}
					if c.add(row) {
						return ErrStop
					}
				}
			}
		}), nil
	}
}

func (c *Collector) add(row Row) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && len(c.rows) >= c.limit {
		return true
	}
	c.rows = append(c.rows, row)
	return c.limit > 0 && len(c.rows) >= c.limit
}

// Rows returns a copy of the collected rows.
func (c *Collector) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Row, len(c.rows))
	copy(out, c.rows)
	return out
}
