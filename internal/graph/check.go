package graph

import (
	"fmt"
	"math/big"
)

// CheckValue verifies v matches the datatype and cardinality of k. List keys
// accept a []any of matching elements or a single matching element.
func CheckValue(k PropertyKey, v any) error {
	if xs, ok := v.([]any); ok {
		if k.Cardinality != List {
			return fmt.Errorf("property %s: multiple values for single-valued key", k.Name)
		}
		for _, x := range xs {
			if err := checkScalar(k, x); err != nil {
				return err
			}
		}
		return nil
	}
	return checkScalar(k, v)
}

func checkScalar(k PropertyKey, v any) error {
	ok := false
	switch k.DataType {
	case Int32:
		_, ok = v.(int32)
	case Int64:
		_, ok = v.(int64)
	case String:
		_, ok = v.(string)
	case Float64:
		_, ok = v.(float64)
	case Decimal:
		_, ok = v.(*big.Rat)
	case BigInt:
		_, ok = v.(*big.Int)
	}
	if !ok {
		return fmt.Errorf("property %s: value %v (%T) does not match datatype %s", k.Name, v, v, k.DataType)
	}
	return nil
}
