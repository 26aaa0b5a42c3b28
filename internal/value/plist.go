// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package value

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// DecodePlist parses an XML property list into a Value. Only the read
// direction is supported: the only plist producer in scope is the
// platform's `defaults`/`plist` tooling (internal/facade), never this
// program.
func DecodePlist(data []byte) (Value, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("decode plist: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "plist" {
			return decodePlistValue(dec)
		}
	}
}

// decodePlistValue reads the next element-bearing token and converts it.
func decodePlistValue(dec *xml.Decoder) (Value, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("decode plist: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		return decodePlistElement(dec, start)
	}
}

func decodePlistElement(dec *xml.Decoder, start xml.StartElement) (Value, error) {
	switch start.Name.Local {
	case "true":
		skipToEnd(dec, start.Name)
		return NewBool(true), nil
	case "false":
		skipToEnd(dec, start.Name)
		return NewBool(false), nil
	case "integer":
		s, err := readCharData(dec, start.Name)
		if err != nil {
			return Value{}, err
		}
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("decode plist integer: %w", err)
		}
		return NewInt(i), nil
	case "real":
		s, err := readCharData(dec, start.Name)
		if err != nil {
			return Value{}, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, fmt.Errorf("decode plist real: %w", err)
		}
		return NewFloat(f), nil
	case "string":
		s, err := readCharData(dec, start.Name)
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case "data":
		s, err := readCharData(dec, start.Name)
		if err != nil {
			return Value{}, err
		}
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return Value{}, fmt.Errorf("decode plist data: %w", err)
		}
		return NewData(raw), nil
	case "array":
		var items []Value
		for {
			tok, err := dec.Token()
			if err != nil {
				return Value{}, fmt.Errorf("decode plist array: %w", err)
			}
			if end, ok := tok.(xml.EndElement); ok && end.Name == start.Name {
				break
			}
			if s, ok := tok.(xml.StartElement); ok {
				v, err := decodePlistElement(dec, s)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
		}
		return NewArray(items...), nil
	case "dict":
		m := make(map[string]Value)
		var pendingKey string
		haveKey := false
		for {
			tok, err := dec.Token()
			if err != nil {
				return Value{}, fmt.Errorf("decode plist dict: %w", err)
			}
			if end, ok := tok.(xml.EndElement); ok && end.Name == start.Name {
				break
			}
			s, ok := tok.(xml.StartElement)
			if !ok {
				continue
			}
			if s.Name.Local == "key" {
				k, err := readCharData(dec, s.Name)
				if err != nil {
					return Value{}, err
				}
				pendingKey = k
				haveKey = true
				continue
			}
			if !haveKey {
				return Value{}, fmt.Errorf("decode plist dict: value without key")
			}
			v, err := decodePlistElement(dec, s)
			if err != nil {
				return Value{}, err
			}
			m[pendingKey] = v
			haveKey = false
		}
		return NewDict(m), nil
	default:
		skipToEnd(dec, start.Name)
		return NewNull(), nil
	}
}

func readCharData(dec *xml.Decoder, name xml.Name) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("decode plist %s: %w", name.Local, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name == name {
				return sb.String(), nil
			}
		}
	}
}

func skipToEnd(dec *xml.Decoder, name xml.Name) {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == name {
				depth++
			}
		case xml.EndElement:
			if t.Name == name {
				if depth == 0 {
					return
				}
				depth--
			}
		}
	}
}
