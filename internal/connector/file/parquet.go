package file

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"

	"duck-connect/internal/connector"
	"duck-connect/internal/ddl"
	"duck-connect/internal/domain"
	"duck-connect/internal/extract"
	"duck-connect/internal/inject"
	"duck-connect/internal/types"
)

// parquetFormat reads and writes Parquet through an in-memory DuckDB.
type parquetFormat struct{}

func (parquetFormat) extension() string { return "parquet" }

func openDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return db, nil
}

func (parquetFormat) resolve(ctx context.Context, src source, declared []domain.ExternalField) ([]domain.ExternalField, error) {
	if len(declared) > 0 {
		for _, f := range declared {
			if f.Type == types.Object || f.Type == types.Null {
				return nil, domain.ErrSchema("column %q: type %s is not supported by format %q", f.Name, f.Type, FormatParquet)
			}
		}
		return declared, nil
	}
	if len(src.files) == 0 {
		return nil, noDataFound(src.opts.Path)
	}
	path := src.files[0]
	db, err := openDuckDB()
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	query, err := ddl.DescribeParquet(path)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.ErrSchema("file %s: cannot read Parquet schema: %v", path, err)
	}
	defer rows.Close() //nolint:errcheck

	var fields []domain.ExternalField
	for rows.Next() {
		var name, typ string
		var null, key, def, extra sql.NullString
		if err := rows.Scan(&name, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("scan Parquet schema of %s: %w", path, err)
		}
		fields = append(fields, domain.ExternalField{Name: name, Type: duckDBType(typ)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read Parquet schema of %s: %w", path, err)
	}
	return fields, nil
}

// duckDBType maps a DuckDB column type onto a column type. Unsigned,
// nested and other exotic types are OBJECT.
func duckDBType(name string) types.Type {
	t, err := types.Parse(name)
	if err != nil {
		return types.Object
	}
	return t
}

// duckDBColumnType is the DuckDB type a column is written as.
func duckDBColumnType(t types.Type) string {
	switch t {
	case types.Int:
		return "INTEGER"
	case types.Decimal:
		return "DECIMAL(38, 9)"
	case types.TimestampWithTimeZone:
		return "TIMESTAMPTZ"
	default:
		return string(t)
	}
}

func (parquetFormat) newQueryTarget(fields []connector.TableField) extract.QueryTarget {
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.Path
	}
	return extract.NewRowTarget(paths)
}

// read selects the table's columns in field order. DECIMAL is read as text
// so precision survives the driver.
func (parquetFormat) read(ctx context.Context, src source, path string, fields []connector.TableField, fn func(record any) error) error {
	if src.fs != nil && !src.fs.Local() {
		return fmt.Errorf("read %s: format %q needs a local file system", path, FormatParquet)
	}
	db, err := openDuckDB()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	cols := make([]ddl.ReadColumn, len(fields))
	for i, f := range fields {
		cols[i] = ddl.ReadColumn{Name: f.Path, AsText: f.Type == types.Decimal}
	}
	query, err := ddl.SelectParquet(path, cols)
	if err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		record := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range record {
			ptrs[i] = &record[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (parquetFormat) newUpsertTarget(fields []connector.TableField) inject.UpsertTarget {
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.Path
	}
	return inject.NewRowTarget(paths)
}

func (parquetFormat) newWriter(w io.Writer, _ *Options, fields []connector.TableField) (recordWriter, error) {
	return &parquetWriter{w: w, fields: fields}, nil
}

const stagingTable = "staging"

// parquetWriter buffers a part file's rows and has DuckDB encode them on
// Close.
type parquetWriter struct {
	w      io.Writer
	fields []connector.TableField
	rows   [][]any
}

func (pw *parquetWriter) Write(record any) error {
	row, ok := record.([]any)
	if !ok {
		return fmt.Errorf("unexpected Parquet record %T", record)
	}
	pw.rows = append(pw.rows, row)
	return nil
}

func (pw *parquetWriter) Close() error {
	dir, err := os.MkdirTemp("", "duck-connect-parquet-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir) //nolint:errcheck
	out := filepath.Join(dir, "part.parquet")

	if err := pw.encode(context.Background(), out); err != nil {
		return err
	}
	f, err := os.Open(out)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	_, err = io.Copy(pw.w, f)
	return err
}

func (pw *parquetWriter) encode(ctx context.Context, out string) error {
	db, err := openDuckDB()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	cols := make([]ddl.Column, len(pw.fields))
	for i, f := range pw.fields {
		cols[i] = ddl.Column{Name: f.Path, Type: duckDBColumnType(f.Type)}
	}
	create, err := ddl.CreateTable(stagingTable, cols)
	if err != nil {
		return err
	}
	insert, err := ddl.InsertValues(stagingTable, cols)
	if err != nil {
		return err
	}
	copyTo, err := ddl.CopyToParquet(stagingTable, out)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck
	for _, row := range pw.rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = duckDBParam(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("stage row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, copyTo); err != nil {
		return fmt.Errorf("encode Parquet: %w", err)
	}
	return nil
}

// duckDBParam passes values the driver binds natively and renders the rest
// as text for the CAST in the insert statement.
func duckDBParam(v any) any {
	switch x := v.(type) {
	case decimal.Decimal, civil.Date, civil.Time, civil.DateTime:
		return types.ToText(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
