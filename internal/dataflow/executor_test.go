package dataflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDAG_Validate(t *testing.T) {
	t.Run("duplicate_name", func(t *testing.T) {
		d := New()
		d.NewVertex("a", Values(nil))
		d.NewVertex("a", Values(nil))
		require.ErrorContains(t, d.Validate(), "duplicate vertex")
	})

	t.Run("cycle", func(t *testing.T) {
		d := New()
		a := d.NewVertex("a", Values(nil))
		b := d.NewVertex("b", Values(nil))
		d.Edge(a, b).Edge(b, a)
		require.ErrorContains(t, d.Validate(), "cycle")
	})

	t.Run("foreign_vertex", func(t *testing.T) {
		d := New()
		a := d.NewVertex("a", Values(nil))
		other := New().NewVertex("b", Values(nil))
		d.Edge(a, other)
		require.ErrorContains(t, d.Validate(), "outside the dag")
	})
}

func TestExecutor_Pipeline(t *testing.T) {
	d := New()
	src := d.NewVertex("src", Values([]Row{{1}, {2}, {3}, {4}})).LocalParallelism(2)
	double := d.NewVertex("double", Map(func(Context) (func(Row) (Row, error), error) {
		return func(r Row) (Row, error) {
			if r[0].(int) == 3 {
				return nil, nil
			}
			return Row{r[0].(int) * 2}, nil
		}, nil
	})).LocalParallelism(3)
	sink := NewCollector(0)
	out := d.NewVertex("sink", sink.Supplier())
	d.Edge(src, double).Edge(double, out)

	require.NoError(t, NewExecutor(discardLogger()).Run(context.Background(), d))

	var got []int
	for _, r := range sink.Rows() {
		got = append(got, r[0].(int))
	}
	sort.Ints(got)
	assert.Equal(t, []int{2, 4, 8}, got)
}

func TestExecutor_StopOnUnboundedSource(t *testing.T) {
	d := New()
	src := d.NewVertex("src", func(Context) (Processor, error) {
		return ProcessorFunc(func(ctx context.Context, _ <-chan Row, emit func(Row) error) error {
			for i := 0; ; i++ {
				if err := emit(Row{i}); err != nil {
					return err
				}
			}
		}), nil
	})
	sink := NewCollector(5)
	d.Edge(src, d.NewVertex("sink", sink.Supplier()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, NewExecutor(discardLogger()).Run(ctx, d))
	assert.Len(t, sink.Rows(), 5)
}

func TestExecutor_ProcessorError(t *testing.T) {
	boom := errors.New("boom")
	d := New()
	src := d.NewVertex("src", Values([]Row{{1}, {2}}))
	fail := d.NewVertex("fail", Map(func(Context) (func(Row) (Row, error), error) {
		return func(Row) (Row, error) { return nil, boom }, nil
	}))
	d.Edge(src, fail)

	err := NewExecutor(discardLogger()).Run(context.Background(), d)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `vertex "fail"`)
}

func TestExecutor_MemberContext(t *testing.T) {
	tests := []struct {
		name   string
		opts   []ExecutorOption
		member int
		global [][2]int
	}{
		{"single_member", nil, 0, [][2]int{{0, 2}, {1, 2}}},
		{"second_of_three", []ExecutorOption{WithMember(1, 3)}, 1, [][2]int{{2, 6}, {3, 6}}},
		{"out_of_range_ignored", []ExecutorOption{WithMember(3, 3)}, 0, [][2]int{{0, 2}, {1, 2}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var mu sync.Mutex
			var seen []Context
			d := New()
			d.NewVertex("src", func(pctx Context) (Processor, error) {
				mu.Lock()
				seen = append(seen, pctx)
				mu.Unlock()
				return ProcessorFunc(func(context.Context, <-chan Row, func(Row) error) error { return nil }), nil
			}).LocalParallelism(2)

			require.NoError(t, NewExecutor(discardLogger(), tc.opts...).Run(context.Background(), d))
			require.Len(t, seen, 2)
			sort.Slice(seen, func(i, j int) bool { return seen[i].Index < seen[j].Index })
			for i, pctx := range seen {
				assert.Equal(t, tc.member, pctx.Member)
				index, count := pctx.GlobalIndex()
				assert.Equal(t, tc.global[i], [2]int{index, count})
			}
		})
	}
}
