// Package ddl builds the DuckDB statements the Parquet format runs, quoting
// and validating every identifier and type that reaches SQL text.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// columnTypeRe accepts WORD, WORD(p), WORD(p, s) and an optional [] suffix.
var columnTypeRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_ ]*(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?(?:\[\])?$`)

const (
	maxIdentifierLen = 128
	maxColumnTypeLen = 64
)

// ValidateIdentifier checks that name is a plain identifier: non-empty, at
// most 128 characters, matching [a-zA-Z_][a-zA-Z0-9_]*.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name %q must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ValidateColumnType checks that typeName is a DuckDB type name safe to
// splice into a statement.
func ValidateColumnType(typeName string) error {
	if typeName == "" {
		return fmt.Errorf("column type is required")
	}
	if len(typeName) > maxColumnTypeLen {
		return fmt.Errorf("column type must be at most %d characters", maxColumnTypeLen)
	}
	if strings.ContainsAny(typeName, ";-'\"\\") {
		return fmt.Errorf("column type contains invalid characters")
	}
	if !columnTypeRe.MatchString(typeName) {
		return fmt.Errorf("column type %q is not a recognized type pattern", typeName)
	}
	return nil
}
