// Package query runs one-shot scans and inserts against catalog tables by
// building a dataflow job from the table's connector fragments and running
// it on the local executor.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/types"
)

// TableResolver finds tables by name. *catalog.ExternalCatalog
// implements it.
type TableResolver interface {
	GetTable(ctx context.Context, name string) (*connector.Table, error)
}

// QueryResult holds the rows produced by a Select.
//
//nolint:revive // Name chosen for clarity across package boundaries
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// SelectRequest describes a scan. Columns are expressions over the table's
// columns and default to every column. Where is an optional predicate.
type SelectRequest struct {
	Table   string   `json:"-"`
	Columns []string `json:"columns,omitempty"`
	Where   string   `json:"where,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// InsertRequest carries rows shaped like the table's full column list.
type InsertRequest struct {
	Table string  `json:"-"`
	Rows  [][]any `json:"rows"`
}

// Service executes Select and Insert requests.
type Service struct {
	tables   TableResolver
	executor *dataflow.Executor
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService creates a query Service. A zero timeout disables the
// per-request deadline.
func NewService(tables TableResolver, logger *slog.Logger, timeout time.Duration, opts ...dataflow.ExecutorOption) *Service {
	logger = logger.With("component", "query")
	return &Service{
		tables:   tables,
		executor: dataflow.NewExecutor(logger, opts...),
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Select scans a table. Unbounded (stream) tables need a positive Limit.
func (s *Service) Select(ctx context.Context, req SelectRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Table) == "" {
		return nil, domain.ErrValidation("table is required")
	}
	if req.Limit < 0 {
		return nil, domain.ErrValidation("limit must not be negative")
	}
	table, err := s.tables.GetTable(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	conn := table.Connector()
	if !conn.SupportsFullScanReader() {
		return nil, connector.NotSupported(conn, "full scan")
	}
	if conn.IsStream() && req.Limit == 0 {
		return nil, domain.ErrValidation("table %q is a stream: a limit is required", req.Table)
	}

	columns, projection, predicate, err := compileScan(table, req.Columns, req.Where)
	if err != nil {
		return nil, err
	}

	dag := dataflow.New()
	src, err := conn.FullScanReader(dag, table, "", predicate, projection)
	if err != nil {
		return nil, domain.ErrValidation("%v", err)
	}
	collector := dataflow.NewCollector(req.Limit)
	dag.Edge(src, dag.NewVertex("Collect", collector.Supplier()))

	start := time.Now()
	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.executor.Run(runCtx, dag); err != nil {
		return nil, fmt.Errorf("select from %q: %w", req.Table, err)
	}

	rows := collector.Rows()
	s.logger.Debug("select finished", "table", req.Table, "rows", len(rows), "duration", time.Since(start))
	result := &QueryResult{Columns: columns, Rows: make([][]any, len(rows)), RowCount: len(rows)}
	for i, r := range rows {
		result.Rows[i] = r
	}
	return result, nil
}

// compileScan compiles the projection, defaulting to every column of
// table, and the optional predicate of a scan.
func compileScan(table *connector.Table, columns []string, where string) ([]string, []*expression.Expression, *expression.Expression, error) {
	if len(columns) == 0 {
		columns = table.FieldNames()
	}
	projection := make([]*expression.Expression, len(columns))
	for i, c := range columns {
		var err error
		if projection[i], err = expression.Compile(c); err != nil {
			return nil, nil, nil, domain.ErrValidation("column %d: %v", i+1, err)
		}
	}
	var predicate *expression.Expression
	if strings.TrimSpace(where) != "" {
		var err error
		if predicate, err = expression.Compile(where); err != nil {
			return nil, nil, nil, domain.ErrValidation("where: %v", err)
		}
	}
	return columns, projection, predicate, nil
}

// Insert writes rows to a table and returns how many were written. Values
// are coerced to the declared column types before the job starts.
func (s *Service) Insert(ctx context.Context, req InsertRequest) (int, error) {
	if strings.TrimSpace(req.Table) == "" {
		return 0, domain.ErrValidation("table is required")
	}
	table, err := s.tables.GetTable(ctx, req.Table)
	if err != nil {
		return 0, err
	}
	conn := table.Connector()
	if !conn.SupportsSink() {
		return 0, connector.NotSupported(conn, "sink")
	}

	rows := make([]dataflow.Row, len(req.Rows))
	for i, values := range req.Rows {
		if len(values) != len(table.Fields) {
			return 0, domain.ErrValidation("row %d has %d values, table %q has %d columns", i+1, len(values), req.Table, len(table.Fields))
		}
		row := make(dataflow.Row, len(values))
		for j, f := range table.Fields {
			v, err := types.Convert(f.Type, values[j])
			if err != nil {
				return 0, fmt.Errorf("row %d column %q: %w", i+1, f.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	if len(rows) == 0 {
		return 0, nil
	}

	dag := dataflow.New()
	src := dag.NewVertex("Values", dataflow.Values(rows))
	sink, err := conn.Sink(dag, table)
	if err != nil {
		return 0, domain.ErrValidation("%v", err)
	}
	dag.Edge(src, sink)

	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.executor.Run(runCtx, dag); err != nil {
		return 0, fmt.Errorf("insert into %q: %w", req.Table, err)
	}
	s.logger.Info("rows inserted", "table", req.Table, "rows", len(rows))
	return len(rows), nil
}
