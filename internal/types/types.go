// Package types defines the canonical scalar type set shared by every
// connector and the conversions from format-native values into it.
package types

import (
	"fmt"
	"strings"
)

// Type identifies a canonical column type.
type Type string

// Canonical column types.
const (
	Null                  Type = "NULL"
	Boolean               Type = "BOOLEAN"
	TinyInt               Type = "TINYINT"
	SmallInt              Type = "SMALLINT"
	Int                   Type = "INT"
	BigInt                Type = "BIGINT"
	Real                  Type = "REAL"
	Double                Type = "DOUBLE"
	Decimal               Type = "DECIMAL"
	Varchar               Type = "VARCHAR"
	Date                  Type = "DATE"
	Time                  Type = "TIME"
	Timestamp             Type = "TIMESTAMP"
	TimestampWithTimeZone Type = "TIMESTAMP WITH TIME ZONE"
	Object                Type = "OBJECT"
)

// Scalars lists every non-catch-all type in declaration order.
var Scalars = []Type{
	Boolean, TinyInt, SmallInt, Int, BigInt, Real, Double, Decimal,
	Varchar, Date, Time, Timestamp, TimestampWithTimeZone,
}

var aliases = map[string]Type{
	"NULL":                        Null,
	"BOOLEAN":                     Boolean,
	"BOOL":                        Boolean,
	"TINYINT":                     TinyInt,
	"SMALLINT":                    SmallInt,
	"INT":                         Int,
	"INTEGER":                     Int,
	"BIGINT":                      BigInt,
	"REAL":                        Real,
	"FLOAT":                       Real,
	"DOUBLE":                      Double,
	"DOUBLE PRECISION":            Double,
	"DECIMAL":                     Decimal,
	"NUMERIC":                     Decimal,
	"VARCHAR":                     Varchar,
	"CHAR VARYING":                Varchar,
	"CHARACTER VARYING":           Varchar,
	"TEXT":                        Varchar,
	"STRING":                      Varchar,
	"DATE":                        Date,
	"TIME":                        Time,
	"TIMESTAMP":                   Timestamp,
	"TIMESTAMP WITH TIME ZONE":    TimestampWithTimeZone,
	"TIMESTAMPTZ":                 TimestampWithTimeZone,
	"TIMESTAMP_WITH_TIME_ZONE":    TimestampWithTimeZone,
	"OBJECT":                      Object,
	"JSON":                        Object,
	"TIMESTAMP WITHOUT TIME ZONE": Timestamp,
}

// Parse resolves a SQL type name, including common aliases, to a Type.
// Whitespace and case are normalised; precision suffixes such as
// DECIMAL(10,2) or VARCHAR(255) are accepted and ignored.
func Parse(name string) (Type, error) {
	n := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	if i := strings.IndexByte(n, '('); i > 0 && strings.HasSuffix(n, ")") {
		n = strings.TrimSpace(n[:i])
	}
	if t, ok := aliases[n]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown type %q", name)
}

// IsInteger reports whether t is one of the integer widths.
func (t Type) IsInteger() bool {
	switch t {
	case TinyInt, SmallInt, Int, BigInt:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) { return []byte(t), nil }

// UnmarshalText implements encoding.TextUnmarshaler and accepts aliases.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
