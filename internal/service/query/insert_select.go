package query

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// InsertSelectRequest copies the rows of a scan of Source into Table.
// Columns are expressions over Source and must line up with Table's
// columns; they default to every column of Source.
type InsertSelectRequest struct {
	Table   string   `json:"table"`
	Source  string   `json:"source"`
	Columns []string `json:"columns,omitempty"`
	Where   string   `json:"where,omitempty"`
}

// insertSelectPlan is a built INSERT ... SELECT job. rows counts the rows
// handed to the sink so far.
type insertSelectPlan struct {
	dag    *dataflow.DAG
	stream bool
	rows   *atomic.Int64
}

func (s *Service) planInsertSelect(ctx context.Context, req InsertSelectRequest) (*insertSelectPlan, error) {
	if strings.TrimSpace(req.Table) == "" {
		return nil, domain.ErrValidation("table is required")
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, domain.ErrValidation("source is required")
	}
	sink, err := s.tables.GetTable(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	source, err := s.tables.GetTable(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	sinkConn, srcConn := sink.Connector(), source.Connector()
	if !sinkConn.SupportsSink() {
		return nil, connector.NotSupported(sinkConn, "sink")
	}
	if !srcConn.SupportsFullScanReader() {
		return nil, connector.NotSupported(srcConn, "full scan")
	}

	_, projection, predicate, err := compileScan(source, req.Columns, req.Where)
	if err != nil {
		return nil, err
	}
	if len(projection) != len(sink.Fields) {
		return nil, domain.ErrValidation("select list has %d columns, table %q has %d", len(projection), req.Table, len(sink.Fields))
	}

	dag := dataflow.New()
	src, err := srcConn.FullScanReader(dag, source, "", predicate, projection)
	if err != nil {
		return nil, domain.ErrValidation("%v", err)
	}
	rows := &atomic.Int64{}
	fields := sink.Fields
	coerce := dag.NewVertex(fmt.Sprintf("Coerce(%s)", sink.QualifiedName()), dataflow.Map(func(dataflow.Context) (func(dataflow.Row) (dataflow.Row, error), error) {
		return func(row dataflow.Row) (dataflow.Row, error) {
			out := make(dataflow.Row, len(fields))
			for i, f := range fields {
				v, err := types.Convert(f.Type, row[i])
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", f.Name, err)
				}
				out[i] = v
			}
			rows.Add(1)
			return out, nil
		}, nil
	}))
	entry, err := sinkConn.Sink(dag, sink)
	if err != nil {
		return nil, domain.ErrValidation("%v", err)
	}
	dag.Edge(src, coerce).Edge(coerce, entry)
	return &insertSelectPlan{dag: dag, stream: srcConn.IsStream(), rows: rows}, nil
}

// InsertSelect runs an INSERT ... SELECT over a bounded source and returns
// the number of rows written. Stream sources never finish and must run as
// a job.
func (s *Service) InsertSelect(ctx context.Context, req InsertSelectRequest) (int64, error) {
	plan, err := s.planInsertSelect(ctx, req)
	if err != nil {
		return 0, err
	}
	if plan.stream {
		return 0, domain.ErrValidation("You must use CREATE JOB statement for a streaming DML query")
	}
	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.executor.Run(runCtx, plan.dag); err != nil {
		return 0, fmt.Errorf("insert into %q from %q: %w", req.Table, req.Source, err)
	}
	n := plan.rows.Load()
	s.logger.Info("rows copied", "table", req.Table, "source", req.Source, "rows", n)
	return n, nil
}
