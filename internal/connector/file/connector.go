// Package file implements the File connector: tables backed by a directory
// of CSV, JSON lines, Avro or Parquet files on local disk or object storage.
package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"duck-connect/internal/connector"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/domain"
	"duck-connect/internal/expression"
	"duck-connect/internal/extract"
	"duck-connect/internal/filesystem"
	"duck-connect/internal/inject"
)

// TypeName is the connector's TYPE identifier.
const TypeName = "File"

// Target is the file connector's target descriptor.
type Target struct {
	Options *Options
	format  format
}

// ConnectorType implements connector.TargetDescriptor.
func (Target) ConnectorType() string { return TypeName }

// FileSystemFactory opens the file system serving a path.
type FileSystemFactory func(ctx context.Context, path string, creds filesystem.Credentials) (filesystem.FileSystem, error)

// Connector reads and writes external files.
type Connector struct {
	logger      *slog.Logger
	parallelism int
	openFS      FileSystemFactory
}

var _ connector.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithParallelism sets the number of reader and writer instances per
// fragment.
func WithParallelism(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithFileSystemFactory replaces filesystem.ForPath.
func WithFileSystemFactory(f FileSystemFactory) Option {
	return func(c *Connector) { c.openFS = f }
}

// New creates the File connector.
func New(logger *slog.Logger, opts ...Option) *Connector {
	c := &Connector{
		logger:      logger.With("component", "file-connector"),
		parallelism: 1,
		openFS:      filesystem.ForPath,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TypeName implements connector.Connector.
func (c *Connector) TypeName() string { return TypeName }

// IsStream implements connector.Connector.
func (c *Connector) IsStream() bool { return false }

// ResolveAndValidateFields implements connector.Connector.
func (c *Connector) ResolveAndValidateFields(ctx context.Context, options map[string]string, userFields []domain.ExternalField) ([]domain.ExternalField, error) {
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, err
	}
	f := formatFor(opts.Format)
	src := source{opts: opts}
	if len(userFields) == 0 {
		if src, err = c.listSource(ctx, opts); err != nil {
			return nil, err
		}
	}
	fields, err := f.resolve(ctx, src, userFields)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("resolved fields", "path", opts.Path, "format", opts.Format, "fields", len(fields), "inferred", len(userFields) == 0)
	return fields, nil
}

func (c *Connector) listSource(ctx context.Context, opts *Options) (source, error) {
	fs, err := c.openFS(ctx, opts.Path, opts.Credentials)
	if err != nil {
		return source{}, domain.ErrResource(opts.Path, err)
	}
	files, err := fs.List(ctx, opts.Path, opts.Glob)
	if err != nil {
		return source{}, domain.ErrResource(opts.Path, err)
	}
	return source{fs: fs, opts: opts, files: files}, nil
}

// CreateTable implements connector.Connector.
func (c *Connector) CreateTable(schemaName, name string, options map[string]string, fields []domain.ExternalField) (*connector.Table, error) {
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrSchema("table %q has no columns", name)
	}
	meta := connector.ResolvedMetadata{
		Target: Target{Options: opts, format: formatFor(opts.Format)},
		Fields: connector.ToTableFields(fields, nil),
	}
	return connector.NewTable(c, schemaName, name, meta, connector.Statistics{RowCount: connector.UnknownRowCount}), nil
}

// SupportsFullScanReader implements connector.Connector.
func (c *Connector) SupportsFullScanReader() bool { return true }

// FullScanReader implements connector.Connector. Files are listed when the
// job starts and spread over the reader instances. On a shared file system
// every member lists the same files, so they are spread over the instances
// of all members; otherwise each member reads every file it can see.
func (c *Connector) FullScanReader(dag *dataflow.DAG, table *connector.Table, _ string, predicate *expression.Expression, projection []*expression.Expression) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[Target](table)
	if err != nil {
		return nil, err
	}
	if err := connector.ValidateProjection(table, predicate, projection); err != nil {
		return nil, fmt.Errorf("table %q: %w", table.Name, err)
	}
	f, opts, fields := target.format, target.Options, table.Fields

	read := func(ctx context.Context, pctx dataflow.Context, fn func(any) error) error {
		src, err := c.listSource(ctx, opts)
		if err != nil {
			return err
		}
		index, count := pctx.Index, pctx.Count
		if opts.SharedFileSystem {
			index, count = pctx.GlobalIndex()
		}
		for i, path := range src.files {
			if i%count != index {
				continue
			}
			pctx.Logger.Debug("reading file", "path", path)
			if err := f.read(ctx, src, path, fields, fn); err != nil {
				return err
			}
		}
		return nil
	}
	newTarget := func() extract.QueryTarget { return f.newQueryTarget(fields) }
	supplier := connector.ScanSupplier(newTarget, fields, predicate, projection, read)
	return dag.NewVertex(fmt.Sprintf("Read(%s)", table.QualifiedName()), supplier).LocalParallelism(c.parallelism), nil
}

// SupportsSink implements connector.Connector.
func (c *Connector) SupportsSink() bool { return true }

// Sink implements connector.Connector. Rows are turned into native records
// by a Project vertex and written by a Write vertex; each writer instance
// produces one new part file. The Project vertex is the entry point.
func (c *Connector) Sink(dag *dataflow.DAG, table *connector.Table) (*dataflow.Vertex, error) {
	target, err := connector.TargetOf[Target](table)
	if err != nil {
		return nil, err
	}
	f, opts, fields := target.format, target.Options, table.Fields

	project := dag.NewVertex(connector.ProjectVertexName(table),
		connector.UpsertSupplier(func() inject.UpsertTarget { return f.newUpsertTarget(fields) }, fields)).
		LocalParallelism(c.parallelism)

	write := dag.NewVertex(fmt.Sprintf("Write(%s)", table.QualifiedName()), func(pctx dataflow.Context) (dataflow.Processor, error) {
		return &writeProcessor{c: c, opts: opts, format: f, fields: fields, pctx: pctx}, nil
	}).LocalParallelism(c.parallelism)

	dag.Edge(project, write)
	return project, nil
}

// writeProcessor writes every record it receives to one part file, opened
// on the first record so idle instances leave no empty files behind.
type writeProcessor struct {
	c      *Connector
	opts   *Options
	format format
	fields []connector.TableField
	pctx   dataflow.Context

	file   io.WriteCloser
	writer recordWriter
	path   string
	count  int
}

func (p *writeProcessor) Process(ctx context.Context, in <-chan dataflow.Row, _ func(dataflow.Row) error) (err error) {
	defer func() {
		if err != nil {
			p.abort()
			return
		}
		err = p.close()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-in:
			if !ok {
				return nil
			}
			if err := p.write(ctx, row[0]); err != nil {
				return err
			}
		}
	}
}

func (p *writeProcessor) write(ctx context.Context, record any) error {
	if p.writer == nil {
		fs, err := p.c.openFS(ctx, p.opts.Path, p.opts.Credentials)
		if err != nil {
			return domain.ErrResource(p.opts.Path, err)
		}
		name := fmt.Sprintf("part-%05d-%s.%s", p.pctx.Index, uuid.NewString(), p.format.extension())
		p.path = filesystem.Join(p.opts.Path, name)
		if p.file, err = fs.Create(ctx, p.path); err != nil {
			return domain.ErrResource(p.path, err)
		}
		if p.writer, err = p.format.newWriter(p.file, p.opts, p.fields); err != nil {
			return err
		}
	}
	if err := p.writer.Write(record); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	p.count++
	return nil
}

func (p *writeProcessor) abort() {
	if p.file == nil {
		return
	}
	if err := filesystem.Abort(p.file); err != nil {
		p.pctx.Logger.Warn("discard part file", "path", p.path, "error", err)
	}
}

func (p *writeProcessor) close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.abort()
		return fmt.Errorf("finish %s: %w", p.path, err)
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", p.path, err)
	}
	p.pctx.Logger.Info("wrote part file", "path", p.path, "records", p.count)
	return nil
}
