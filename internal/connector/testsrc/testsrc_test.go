package testsrc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, ctx context.Context, c connector.Connector, table *connector.Table, limit int, predicate string, columns ...string) []dataflow.Row {
	t.Helper()
	var pred *expression.Expression
	if predicate != "" {
		pred = expression.MustCompile(predicate)
	}
	dag := dataflow.New()
	src, err := c.FullScanReader(dag, table, "", pred, expression.Columns(columns...))
	require.NoError(t, err)
	collector := dataflow.NewCollector(limit)
	dag.Edge(src, dag.NewVertex("collect", collector.Supplier()))
	require.NoError(t, dataflow.NewExecutor(discardLogger()).Run(ctx, dag))
	return collector.Rows()
}

func TestBatch_Fields(t *testing.T) {
	c := NewBatch(discardLogger())
	assert.Equal(t, "TestBatch", c.TypeName())
	assert.False(t, c.IsStream())
	assert.False(t, c.SupportsSink())

	fields, err := c.ResolveAndValidateFields(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.ExternalField{{Name: "v", Type: types.Int}}, fields)

	_, err = c.ResolveAndValidateFields(context.Background(), nil, []domain.ExternalField{{Name: "x", Type: types.Int}})
	require.Error(t, err)
	assert.Equal(t, "Don't specify external fields, they are fixed", err.Error())
}

func TestBatch_Options(t *testing.T) {
	c := NewBatch(discardLogger())

	table, err := c.CreateTable(domain.DefaultSchemaName, "b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultItemCount), table.Statistics.RowCount)

	table, err = c.CreateTable(domain.DefaultSchemaName, "b", map[string]string{OptionItemCount: "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), table.Statistics.RowCount)

	for _, raw := range []map[string]string{
		{OptionItemCount: "-1"},
		{OptionItemCount: "many"},
		{OptionItemCount: "2147483648"},
		{OptionItemCount: "4611686018427387904"},
		{"other": "1"},
	} {
		_, err := c.CreateTable(domain.DefaultSchemaName, "b", raw, nil)
		var schemaErr *domain.SchemaError
		assert.ErrorAs(t, err, &schemaErr, "options %v", raw)
	}
}

func TestBatch_Scan(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", map[string]string{OptionItemCount: "5"}, nil)
	require.NoError(t, err)

	rows := collect(t, context.Background(), c, table, 0, "", "v")
	assert.Equal(t, []dataflow.Row{{int32(0)}, {int32(1)}, {int32(2)}, {int32(3)}, {int32(4)}}, rows)

	rows = collect(t, context.Background(), c, table, 0, "v % 2 == 0", "v")
	assert.Equal(t, []dataflow.Row{{int32(0)}, {int32(2)}, {int32(4)}}, rows)
}

func TestBatch_LargeCountIsLazy(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", map[string]string{OptionItemCount: "2147483647"}, nil)
	require.NoError(t, err)

	rows := collect(t, context.Background(), c, table, 3, "v >= 10", "v")
	assert.Equal(t, []dataflow.Row{{int32(10)}, {int32(11)}, {int32(12)}}, rows)
}

func TestBatch_ParallelInstances(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", map[string]string{OptionItemCount: "10"}, nil)
	require.NoError(t, err)

	dag := dataflow.New()
	src, err := c.FullScanReader(dag, table, "", nil, expression.Columns("v"))
	require.NoError(t, err)
	src.LocalParallelism(3)
	collector := dataflow.NewCollector(0)
	dag.Edge(src, dag.NewVertex("collect", collector.Supplier()))
	require.NoError(t, dataflow.NewExecutor(discardLogger()).Run(context.Background(), dag))

	var got []int32
	for _, r := range collector.Rows() {
		got = append(got, r[0].(int32))
	}
	assert.ElementsMatch(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestBatch_ComputedProjection(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", map[string]string{OptionItemCount: "3"}, nil)
	require.NoError(t, err)

	dag := dataflow.New()
	src, err := c.FullScanReader(dag, table, "", nil, []*expression.Expression{expression.MustCompile("v * 10")})
	require.NoError(t, err)
	assert.Equal(t, "TestBatch[public.b]", src.Name())

	collector := dataflow.NewCollector(0)
	dag.Edge(src, dag.NewVertex("collect", collector.Supplier()))
	require.NoError(t, dataflow.NewExecutor(discardLogger()).Run(context.Background(), dag))
	require.Len(t, collector.Rows(), 3)
	assert.EqualValues(t, 20, collector.Rows()[2][0])
}

func TestBatch_UnknownColumn(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", nil, nil)
	require.NoError(t, err)

	_, err = c.FullScanReader(dataflow.New(), table, "", nil, expression.Columns("w"))
	assert.Error(t, err)
}

func TestBatch_SinkNotSupported(t *testing.T) {
	c := NewBatch(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "b", nil, nil)
	require.NoError(t, err)

	_, err = c.Sink(dataflow.New(), table)
	assert.True(t, errors.Is(err, connector.ErrNotSupported))
}

func TestStream_Fields(t *testing.T) {
	c := NewStream(discardLogger())
	assert.Equal(t, "TestStream", c.TypeName())
	assert.True(t, c.IsStream())

	fields, err := c.ResolveAndValidateFields(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.ExternalField{{Name: "v", Type: types.BigInt}}, fields)

	_, err = c.ResolveAndValidateFields(context.Background(), nil, fields)
	assert.Error(t, err)

	_, err = c.CreateTable(domain.DefaultSchemaName, "s", map[string]string{OptionItemsPerSecond: "0"}, nil)
	var schemaErr *domain.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestStream_ScanWithLimit(t *testing.T) {
	c := NewStream(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "s", map[string]string{OptionItemsPerSecond: "1000"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows := collect(t, ctx, c, table, 3, "v >= 2", "v")
	assert.Equal(t, []dataflow.Row{{int64(2)}, {int64(3)}, {int64(4)}}, rows)
}

func TestStream_Fragment(t *testing.T) {
	c := NewStream(discardLogger())
	table, err := c.CreateTable(domain.DefaultSchemaName, "s", nil, nil)
	require.NoError(t, err)

	dag := dataflow.New()
	out, err := c.FullScanReader(dag, table, "", nil, expression.Columns("v"))
	require.NoError(t, err)
	assert.Equal(t, "src-map(public.s)", out.Name())
	require.Len(t, dag.Inbound(out), 1)
	assert.Equal(t, "src(public.s)", dag.Inbound(out)[0].From.Name())
}
