package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MismatchError reports a value whose native type cannot be represented in
// the expected column type.
type MismatchError struct {
	Expected Type
	Actual   string
	Value    any
	Err      error
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("cannot convert %s value %s to %s", e.Actual, preview(e.Value), e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MismatchError) Unwrap() error { return e.Err }

func mismatch(expected Type, v any, cause error) *MismatchError {
	return &MismatchError{Expected: expected, Actual: KindOf(v), Value: v, Err: cause}
}

func preview(v any) string {
	s := fmt.Sprintf("%v", v)
	if _, ok := v.(string); ok {
		s = strconv.Quote(s)
	}
	if len(s) > 64 {
		s = s[:61] + "..."
	}
	return s
}

// KindOf names the type of a native value, using the canonical type name
// when the Go type maps onto one.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return string(Null)
	case bool:
		return string(Boolean)
	case int8:
		return string(TinyInt)
	case int16, uint8:
		return string(SmallInt)
	case int32, uint16:
		return string(Int)
	case int, int64, uint32:
		return string(BigInt)
	case uint, uint64:
		return "UNSIGNED BIGINT"
	case float32:
		return string(Real)
	case float64:
		return string(Double)
	case decimal.Decimal, json.Number:
		return string(Decimal)
	case string, []byte:
		return string(Varchar)
	case civil.Date:
		return string(Date)
	case civil.Time:
		return string(Time)
	case civil.DateTime:
		return string(Timestamp)
	case time.Time:
		return string(TimestampWithTimeZone)
	case map[string]any, []any:
		return string(Object)
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Infer returns the column type of a native value. Values with no
// canonical type map to OBJECT and NULL infers as NULL.
func Infer(v any) Type {
	switch k := Type(KindOf(v)); k {
	case Null, Boolean, TinyInt, SmallInt, Int, BigInt, Real, Double, Decimal,
		Varchar, Date, Time, Timestamp, TimestampWithTimeZone:
		return k
	}
	return Object
}

// Convert coerces a native value into the canonical representation of t.
// A nil value is SQL NULL and converts to nil for every type.
func Convert(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Object:
		return v, nil
	case Null:
		return nil, mismatch(t, v, nil)
	case Boolean:
		return toBool(v)
	case TinyInt:
		return toIntRange(t, v, math.MinInt8, math.MaxInt8, func(i int64) any { return int8(i) })
	case SmallInt:
		return toIntRange(t, v, math.MinInt16, math.MaxInt16, func(i int64) any { return int16(i) })
	case Int:
		return toIntRange(t, v, math.MinInt32, math.MaxInt32, func(i int64) any { return int32(i) })
	case BigInt:
		return toIntRange(t, v, math.MinInt64, math.MaxInt64, func(i int64) any { return i })
	case Real:
		f, err := toFloat(t, v)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, mismatch(t, v, fmt.Errorf("out of range"))
		}
		return float32(f), nil
	case Double:
		return toFloat(t, v)
	case Decimal:
		return toDecimal(v)
	case Varchar:
		return toVarchar(v)
	case Date:
		return toDate(v)
	case Time:
		return toTime(v)
	case Timestamp:
		return toTimestamp(v)
	case TimestampWithTimeZone:
		return toTimestampTZ(v)
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, mismatch(Boolean, v, err)
		}
		return b, nil
	}
	return nil, mismatch(Boolean, v, nil)
}

func toIntRange(t Type, v any, lo, hi int64, wrap func(int64) any) (any, error) {
	i, err := toInt64(t, v)
	if err != nil {
		return nil, err
	}
	if i < lo || i > hi {
		return nil, mismatch(t, v, fmt.Errorf("out of range"))
	}
	return wrap(i), nil
}

var (
	minInt64Dec = decimal.NewFromInt(math.MinInt64)
	maxInt64Dec = decimal.NewFromInt(math.MaxInt64)
)

func toInt64(t Type, v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, mismatch(t, v, fmt.Errorf("out of range"))
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, mismatch(t, v, fmt.Errorf("out of range"))
		}
		return int64(x), nil
	case float32:
		return floatToInt64(t, v, float64(x))
	case float64:
		return floatToInt64(t, v, x)
	case decimal.Decimal:
		if x.LessThan(minInt64Dec) || x.GreaterThan(maxInt64Dec) {
			return 0, mismatch(t, v, fmt.Errorf("out of range"))
		}
		if !x.IsInteger() {
			return 0, mismatch(t, v, fmt.Errorf("fractional part would be lost"))
		}
		return x.IntPart(), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, mismatch(t, v, err)
		}
		return toInt64(t, d)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, mismatch(t, v, err)
		}
		return i, nil
	}
	return 0, mismatch(t, v, nil)
}

func floatToInt64(t Type, v any, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, mismatch(t, v, fmt.Errorf("not a finite number"))
	}
	if f != math.Trunc(f) {
		return 0, mismatch(t, v, fmt.Errorf("fractional part would be lost"))
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, mismatch(t, v, fmt.Errorf("out of range"))
	}
	return int64(f), nil
}

func toFloat(t Type, v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint, uint64:
		i, err := toInt64(t, v)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	case decimal.Decimal:
		return x.InexactFloat64(), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, mismatch(t, v, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, mismatch(t, v, err)
		}
		return f, nil
	}
	return 0, mismatch(t, v, nil)
}

func toDecimal(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float32:
		return floatToDecimal(v, float64(x))
	case float64:
		return floatToDecimal(v, x)
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		i, err := toInt64(Decimal, v)
		if err != nil {
			return nil, err
		}
		return decimal.NewFromInt(i), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case json.Number:
		return parseDecimal(v, x.String())
	case string:
		return parseDecimal(v, strings.TrimSpace(x))
	}
	return nil, mismatch(Decimal, v, nil)
}

func floatToDecimal(v any, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, mismatch(Decimal, v, fmt.Errorf("not a finite number"))
	}
	return decimal.NewFromFloat(f), nil
}

func parseDecimal(v any, s string) (any, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, mismatch(Decimal, v, err)
	}
	return d, nil
}

func toVarchar(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case map[string]any, []any:
		return nil, mismatch(Varchar, v, nil)
	}
	return ToText(v), nil
}

func toDate(v any) (any, error) {
	switch x := v.(type) {
	case civil.Date:
		return x, nil
	case civil.DateTime:
		return x.Date, nil
	case time.Time:
		return civil.DateOf(x), nil
	case string:
		s := strings.TrimSpace(x)
		if d, err := civil.ParseDate(s); err == nil {
			return d, nil
		}
		dt, err := parseDateTime(s)
		if err != nil {
			return nil, mismatch(Date, v, err)
		}
		return dt.Date, nil
	}
	return nil, mismatch(Date, v, nil)
}

func toTime(v any) (any, error) {
	switch x := v.(type) {
	case civil.Time:
		return x, nil
	case civil.DateTime:
		return x.Time, nil
	case time.Time:
		return civil.TimeOf(x), nil
	case string:
		t, err := civil.ParseTime(strings.TrimSpace(x))
		if err != nil {
			return nil, mismatch(Time, v, err)
		}
		return t, nil
	}
	return nil, mismatch(Time, v, nil)
}

func toTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case civil.DateTime:
		return x, nil
	case civil.Date:
		return civil.DateTime{Date: x}, nil
	case time.Time:
		return civil.DateTimeOf(x), nil
	case string:
		dt, err := parseDateTime(strings.TrimSpace(x))
		if err != nil {
			return nil, mismatch(Timestamp, v, err)
		}
		return dt, nil
	}
	return nil, mismatch(Timestamp, v, nil)
}

func toTimestampTZ(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case civil.DateTime:
		return x.In(time.UTC), nil
	case civil.Date:
		return x.In(time.UTC), nil
	case string:
		s := strings.TrimSpace(x)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), nil
		}
		dt, err := parseDateTime(s)
		if err != nil {
			return nil, mismatch(TimestampWithTimeZone, v, err)
		}
		return dt.In(time.UTC), nil
	}
	return nil, mismatch(TimestampWithTimeZone, v, nil)
}

// parseDateTime accepts both the ISO 'T' separator and the SQL space.
func parseDateTime(s string) (civil.DateTime, error) {
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return civil.DateTime{}, err
	}
	return civil.DateTimeOf(t), nil
}

// ToText renders a canonical value in the textual form that Convert parses
// back. NULL renders as the empty string.
func ToText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	case civil.Date:
		return x.String()
	case civil.Time:
		return x.String()
	case civil.DateTime:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
