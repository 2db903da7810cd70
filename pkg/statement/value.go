package statement

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValueKind is the closed tag set used to dispatch type coercion and literal
// rendering without re-inferring types after values are boxed into `any`.
type ValueKind int

const (
	KindOther ValueKind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindText
	KindBytes
	KindDate
	KindTime
	KindDateTime
	KindUUID
	KindList
	KindMap
)

var valueKindNames = map[ValueKind]string{
	KindOther:    "other",
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindText:     "text",
	KindBytes:    "bytes",
	KindDate:     "date",
	KindTime:     "time",
	KindDateTime: "datetime",
	KindUUID:     "uuid",
	KindList:     "list",
	KindMap:      "map",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return "other"
}

// TypedParameter carries a value together with its detected kind and an
// optional debug name, so rewriting and serialization downstream do not have
// to re-infer what a nil, bool, decimal, temporal, or byte value was.
type TypedParameter struct {
	Value any
	Kind  ValueKind
	Name  string
}

// NewTypedParameter wraps value with an explicit kind. Use KindDate/KindTime
// to disambiguate a time.Time that carries only a date or a clock component.
func NewTypedParameter(value any, kind ValueKind, name string) TypedParameter {
	return TypedParameter{Value: value, Kind: kind, Name: name}
}

// KindOf classifies a runtime value into the closed ValueKind set. A
// TypedParameter reports its declared kind.
func KindOf(value any) ValueKind {
	switch v := value.(type) {
	case nil:
		return KindNull
	case TypedParameter:
		return v.Kind
	case *TypedParameter:
		return v.Kind
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case decimal.Decimal:
		return KindDecimal
	case string:
		return KindText
	case []byte:
		return KindBytes
	case time.Time:
		return KindDateTime
	case uuid.UUID:
		return KindUUID
	case []any:
		return KindList
	case map[string]any:
		return KindMap
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return KindList
	case reflect.Map:
		return KindMap
	}
	return KindOther
}

// wrapAmbiguous boxes values whose type identity is otherwise lost once they
// travel through a generic parameter container. Lists and maps are wrapped
// element-wise; unambiguous scalars pass through untouched.
func wrapAmbiguous(value any, name string) any {
	switch v := value.(type) {
	case TypedParameter, *TypedParameter:
		return value
	case bool:
		return NewTypedParameter(v, KindBool, name)
	case decimal.Decimal:
		return NewTypedParameter(v, KindDecimal, name)
	case time.Time:
		return NewTypedParameter(v, KindDateTime, name)
	case []byte:
		return NewTypedParameter(v, KindBytes, name)
	case uuid.UUID:
		return NewTypedParameter(v, KindUUID, name)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = wrapAmbiguous(elem, name)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = wrapAmbiguous(elem, k)
		}
		return out
	}
	return value
}

// unwrapTyped strips TypedParameter boxes, recursing into containers.
func unwrapTyped(value any) any {
	switch v := value.(type) {
	case TypedParameter:
		return v.Value
	case *TypedParameter:
		return v.Value
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = unwrapTyped(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = unwrapTyped(elem)
		}
		return out
	}
	return value
}
