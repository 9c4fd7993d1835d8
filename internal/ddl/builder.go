package ddl

import (
	"fmt"
	"strings"
)

// Column is a column of a staging table.
type Column struct {
	Name string
	Type string // DuckDB type name
}

// ReadColumn is a column selected from a Parquet file. AsText casts the
// value to VARCHAR, which keeps DECIMAL precision intact through the driver.
type ReadColumn struct {
	Name   string
	AsText bool
}

// DescribeParquet returns a statement listing the columns of a Parquet
// file.
//
//	DESCRIBE SELECT * FROM read_parquet('/data/part.parquet')
func DescribeParquet(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return "DESCRIBE SELECT * FROM read_parquet(" + QuoteLiteral(path) + ")", nil
}

// SelectParquet returns a statement reading columns, in order, from a
// Parquet file.
func SelectParquet(path string, columns []ReadColumn) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = QuoteIdentifier(c.Name)
		if c.AsText {
			cols[i] = "CAST(" + cols[i] + " AS VARCHAR)"
		}
	}
	return fmt.Sprintf("SELECT %s FROM read_parquet(%s)", strings.Join(cols, ", "), QuoteLiteral(path)), nil
}

// CreateTable returns a CREATE TABLE statement for a staging table.
//
//	CREATE TABLE "staging" ("id" INTEGER, "name" VARCHAR)
func CreateTable(table string, columns []Column) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return "", fmt.Errorf("column %d: name is required", i+1)
		}
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("column %q: %w", c.Name, err)
		}
		defs[i] = QuoteIdentifier(c.Name) + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(table), strings.Join(defs, ", ")), nil
}

// InsertValues returns a parameterised INSERT for table that casts each
// placeholder to its column's type, so text renderings of dates and
// decimals are accepted.
func InsertValues(table string, columns []Column) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	params := make([]string, len(columns))
	for i, c := range columns {
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("column %q: %w", c.Name, err)
		}
		params[i] = "CAST(? AS " + c.Type + ")"
	}
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdentifier(table), strings.Join(params, ", ")), nil
}

// CopyToParquet returns a COPY statement writing table to a Parquet file.
func CopyToParquet(table, path string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("target path is required")
	}
	return fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", QuoteIdentifier(table), QuoteLiteral(path)), nil
}
