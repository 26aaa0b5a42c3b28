// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ToJSON renders a Value to JSON bytes. Data values are emitted as base64
// text, since JSON has no binary representation.
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(toAny(v))
}

func toAny(v Value) interface{} {
	switch v.tag {
	case Null:
		return nil
	case Bool:
		return v.b
	case Int:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Data:
		return base64.StdEncoding.EncodeToString(v.data)
	case Array:
		out := make([]interface{}, len(v.array))
		for i, e := range v.array {
			out[i] = toAny(e)
		}
		return out
	case Dict:
		out := make(map[string]interface{}, len(v.dict))
		for k, e := range v.dict {
			out[k] = toAny(e)
		}
		return out
	default:
		return nil
	}
}

// FromJSON parses JSON bytes into a Value. Numbers without a fractional
// part or exponent become Int; all others become Float.
func FromJSON(data []byte) (Value, error) {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("parse json: %w", err)
	}
	return fromAny(raw), nil
}

func fromAny(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return NewNull()
	case bool:
		return NewBool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return NewInt(i)
		}
		f, _ := x.Float64()
		return NewFloat(f)
	case string:
		return NewString(x)
	case []interface{}:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = fromAny(e)
		}
		return NewArray(items...)
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = fromAny(e)
		}
		return NewDict(m)
	default:
		return NewNull()
	}
}
