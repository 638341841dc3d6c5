package graph

import (
	"fmt"
	"math/big"
	"strconv"
)

// EncodeValue renders a typed scalar in the canonical text form used by the
// SQL-backed stores. DecodeValue reverses it exactly for the same datatype.
func EncodeValue(v any) (string, error) {
	switch x := v.(type) {
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case *big.Rat:
		if x == nil {
			return "", fmt.Errorf("encode: nil decimal")
		}
		return x.RatString(), nil
	case *big.Int:
		if x == nil {
			return "", fmt.Errorf("encode: nil bigint")
		}
		return x.String(), nil
	default:
		return "", fmt.Errorf("encode: unsupported value type %T", v)
	}
}

// DecodeValue parses s as datatype d.
func DecodeValue(d DataType, s string) (any, error) {
	switch d {
	case Int32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode int32: %w", err)
		}
		return int32(n), nil
	case Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode int64: %w", err)
		}
		return n, nil
	case String:
		return s, nil
	case Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("decode float64: %w", err)
		}
		return f, nil
	case Decimal:
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("decode decimal: invalid %q", s)
		}
		return r, nil
	case BigInt:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("decode bigint: invalid %q", s)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("decode: unknown datatype %v", d)
	}
}

// Values flattens a property value into its elements: a []any List value
// yields its elements, anything else yields itself.
func Values(v any) []any {
	if xs, ok := v.([]any); ok {
		return xs
	}
	return []any{v}
}

// LookupKey returns the canonical encoding of a lookup value, used to index
// id properties.
func LookupKey(key string, value any) (string, error) {
	enc, err := EncodeValue(value)
	if err != nil {
		return "", err
	}
	return key + "\x00" + enc, nil
}
