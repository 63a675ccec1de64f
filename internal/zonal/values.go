package zonal

import (
	"fmt"
	"reflect"
)

// flatten walks a (possibly nested) slice of numbers in row-major order and
// returns its elements as float64.
func flatten(v any) ([]float64, error) {
	var out []float64
	if err := appendFlat(&out, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

func appendFlat(out *[]float64, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := appendFlat(out, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return fmt.Errorf("nil value in numeric array")
		}
		return appendFlat(out, v.Elem())
	default:
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("non-numeric value of type %s", v.Type())
		}
		*out = append(*out, f)
		return nil
	}
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

// scalar reads a numeric attribute that may be stored either as a scalar or
// as a one-element array.
func scalar(v any) (float64, bool) {
	vals, err := flatten(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
