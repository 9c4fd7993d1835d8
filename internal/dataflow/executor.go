package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrStop is returned by a processor to end the whole job successfully,
// e.g. once a collector has seen enough rows of an unbounded source.
var ErrStop = errors.New("dataflow: stop job")

const defaultBufferSize = 256

// Executor runs a DAG in-process: every vertex instance is a goroutine,
// every vertex has one input channel fed by all inbound edges, and each
// emitted row is delivered to every outbound edge.
type Executor struct {
	logger     *slog.Logger
	bufferSize int
	member     int
	members    int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMember marks the executor as member index of count nodes that run the
// same jobs against shared storage. Out-of-range values are ignored.
func WithMember(index, count int) ExecutorOption {
	return func(e *Executor) {
		if count >= 1 && index >= 0 && index < count {
			e.member, e.members = index, count
		}
	}
}

// NewExecutor creates an Executor. By default it is the only member.
func NewExecutor(logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{logger: logger, bufferSize: defaultBufferSize, members: 1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes dag until every vertex has finished, a processor fails, a
// processor returns ErrStop, or ctx is cancelled.
func (e *Executor) Run(ctx context.Context, dag *DAG) error {
	if err := dag.Validate(); err != nil {
		return fmt.Errorf("invalid dag: %w", err)
	}
	jobID := uuid.NewString()
	logger := e.logger.With("job", jobID)

	inputs := make(map[*Vertex]chan Row)
	upstream := make(map[*Vertex]*sync.WaitGroup)
	for _, v := range dag.Vertices() {
		if n := len(dag.Inbound(v)); n > 0 {
			inputs[v] = make(chan Row, e.bufferSize)
			wg := &sync.WaitGroup{}
			wg.Add(n)
			upstream[v] = wg
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	stopped := false
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			stopped = true
			cancel()
		})
	}

	for _, v := range dag.Vertices() {
		v := v
		in := inputs[v]
		var outs []chan Row
		var downstream []*Vertex
		for _, edge := range dag.Outbound(v) {
			outs = append(outs, inputs[edge.To])
			downstream = append(downstream, edge.To)
		}

		if wg, ok := upstream[v]; ok {
			go func() {
				wg.Wait()
				close(in)
			}()
		}

		emit := func(row Row) error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, out := range outs {
				select {
				case out <- row:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		}

		var instances sync.WaitGroup
		for i := 0; i < v.parallelism; i++ {
			pctx := Context{
				JobID: jobID, Vertex: v.name,
				Index: i, Count: v.parallelism,
				Member: e.member, Members: e.members,
				Logger: logger.With("vertex", v.name),
			}
			instances.Add(1)
			g.Go(func() error {
				defer instances.Done()
				p, err := v.supplier(pctx)
				if err != nil {
					return fmt.Errorf("vertex %q: create processor: %w", v.name, err)
				}
				err = p.Process(gctx, in, emit)
				if errors.Is(err, ErrStop) {
					stop()
					return nil
				}
				if err != nil {
					return fmt.Errorf("vertex %q: %w", v.name, err)
				}
				return nil
			})
		}

		g.Go(func() error {
			instances.Wait()
			for _, d := range downstream {
				upstream[d].Done()
			}
			// drain anything still queued so upstream senders never block
			if in != nil {
				for range in {
				}
			}
			return nil
		})
	}

	logger.Debug("dag started", "vertices", len(dag.Vertices()), "edges", len(dag.Edges()))
	err := g.Wait()
	if stopped && (err == nil || errors.Is(err, context.Canceled)) {
		logger.Debug("dag stopped")
		return nil
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}
