package domain

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

type Attribute struct {
	attribute.KeyValue
}

func (a *Attribute) UnmarshalJSON(b []byte) error {

	type helper struct {
		Key   string
		Value struct {
			Type  string
			Value json.RawMessage
		}
	}

	kv := helper{}
	if err := json.Unmarshal(b, &kv); err != nil {
		return err
	}

	val, err := ParseValue(kv.Value.Type, kv.Value.Value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", kv.Key, err)
	}

	a.Key = attribute.Key(kv.Key)
	a.Value = val

	return nil
}

// ParseValue decodes the Value half of an attribute as written by the
// attribute.Value JSON marshaller.
func ParseValue(valType string, raw json.RawMessage) (attribute.Value, error) {
	var err error

	switch valType {
	case "BOOL":
		var v bool
		err = json.Unmarshal(raw, &v)
		return attribute.BoolValue(v), err

	case "BOOLSLICE":
		var v []bool
		err = json.Unmarshal(raw, &v)
		return attribute.BoolSliceValue(v), err

	case "INT64":
		var v int64
		err = json.Unmarshal(raw, &v)
		return attribute.Int64Value(v), err

	case "INT64SLICE":
		var v []int64
		err = json.Unmarshal(raw, &v)
		return attribute.Int64SliceValue(v), err

	case "FLOAT64":
		var v float64
		err = json.Unmarshal(raw, &v)
		return attribute.Float64Value(v), err

	case "FLOAT64SLICE":
		var v []float64
		err = json.Unmarshal(raw, &v)
		return attribute.Float64SliceValue(v), err

	case "STRING":
		var v string
		err = json.Unmarshal(raw, &v)
		return attribute.StringValue(v), err

	case "STRINGSLICE":
		var v []string
		err = json.Unmarshal(raw, &v)
		return attribute.StringSliceValue(v), err
	}

	return attribute.Value{}, fmt.Errorf("unknown attribute type %q", valType)
}

func keyValues(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	kvs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		kvs[i] = attr.KeyValue
	}
	return kvs
}
