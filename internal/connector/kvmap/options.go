package kvmap

import (
	"sort"
	"strings"

	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// Options understood by the ReplicatedMap connector.
const (
	OptionMapName     = "mapName"
	OptionKeyFormat   = "keyFormat"
	OptionValueFormat = "valueFormat"
)

// FormatJSON stores a half as a JSON object addressed by attribute. Any
// other format value is a scalar type name.
const FormatJSON = "json"

// halfFormat describes how one half of an entry is stored.
type halfFormat struct {
	json   bool
	scalar types.Type // set for scalar halves
}

func (f halfFormat) String() string {
	if f.json {
		return FormatJSON
	}
	return string(f.scalar)
}

// Options are the parsed table options.
type Options struct {
	MapName     string
	KeyFormat   halfFormat
	ValueFormat halfFormat
}

// ParseOptions validates raw. MapName defaults to tableName when empty.
func ParseOptions(raw map[string]string, tableName string) (*Options, error) {
	var unknown []string
	for k := range raw {
		switch k {
		case OptionMapName, OptionKeyFormat, OptionValueFormat:
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.ErrSchema("unknown options: %s", strings.Join(unknown, ", "))
	}

	opts := &Options{MapName: raw[OptionMapName]}
	if opts.MapName == "" {
		opts.MapName = tableName
	}
	var err error
	if opts.KeyFormat, err = parseHalfFormat(OptionKeyFormat, raw[OptionKeyFormat]); err != nil {
		return nil, err
	}
	if opts.ValueFormat, err = parseHalfFormat(OptionValueFormat, raw[OptionValueFormat]); err != nil {
		return nil, err
	}
	if err := checkKeyType(opts.KeyFormat.scalar); err != nil {
		return nil, err
	}
	return opts, nil
}

func parseHalfFormat(option, value string) (halfFormat, error) {
	switch {
	case value == "":
		return halfFormat{}, nil
	case strings.EqualFold(value, FormatJSON):
		return halfFormat{json: true}, nil
	}
	t, err := types.Parse(value)
	if err != nil {
		return halfFormat{}, domain.ErrSchema("option %s: %q is neither %q nor a type name", option, value, FormatJSON)
	}
	if t == types.Null {
		return halfFormat{}, domain.ErrSchema("option %s: type %s cannot be stored", option, t)
	}
	return halfFormat{scalar: t}, nil
}

// checkKeyType rejects key types whose values do not compare by value.
func checkKeyType(t types.Type) error {
	switch t {
	case types.Object, types.Decimal:
		return domain.ErrSchema("type %s cannot be used as a map key", t)
	}
	return nil
}
