// Package richtext handles the JSON rich-text trees embedded in metaobject
// CSV cells.
//
// A rich-text cell is an arbitrary JSON document. Only string leaves stored
// under a key literally named "value" carry translatable content; everything
// else (keys, nesting, array order, numbers, booleans) is metadata that must
// survive a decode/encode round trip unchanged, including object key order
// and non-ASCII characters.
//
// The tree is represented as a tagged variant: *Object for JSON objects
// (with preserved key order), []any for arrays, and string, json.Number,
// bool, or nil for scalars.
package richtext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Ordered object
// ---------------------------------------------------------------------------

// Object is a JSON object that remembers the order its keys appeared in.
type Object struct {
	keys   []string
	fields map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{fields: make(map[string]any)}
}

// Set stores a field, appending the key if it is new.
func (o *Object) Set(key string, value any) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Keys returns the keys in their original order.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of fields.
func (o *Object) Len() int {
	return len(o.keys)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode parses a cell into a tree. Numbers are kept as json.Number so they
// re-serialize exactly as written.
func Decode(cell string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(cell))
	dec.UseNumber()

	tree, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing rich text: %w", err)
	}

	// Reject trailing garbage after the document.
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("parsing rich text: trailing data after JSON document")
	}

	return tree, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool, or nil
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("expected object key, got %v", keyTok)
			}
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, value)
		}
		// Consume the closing brace.
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}

	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode serializes a tree back to compact JSON. Key order is the decode
// order and non-ASCII characters are written unescaped.
func Encode(tree any) (string, error) {
	var b bytes.Buffer
	if err := encodeValue(&b, tree); err != nil {
		return "", fmt.Errorf("encoding rich text: %w", err)
	}
	return b.String(), nil
}

func encodeValue(b *bytes.Buffer, node any) error {
	switch v := node.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(v.String())
	case string:
		return encodeString(b, v)
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, key := range v.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeString(b, key); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := encodeValue(b, v.fields[key]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("unsupported node type %T", node)
	}
	return nil
}

// encodeString writes a JSON string without escaping HTML characters, so
// text like "<p>" and non-ASCII letters pass through readable.
func encodeString(b *bytes.Buffer, s string) error {
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline; drop it.
	b.Truncate(b.Len() - 1)
	return nil
}

// ---------------------------------------------------------------------------
// Value leaves
// ---------------------------------------------------------------------------

// CountValues returns how many translatable units the tree contains: string
// leaves stored under a key literally named "value" whose content is not
// blank. All other branches are recursed into.
func CountValues(tree any) int {
	count := 0
	switch v := tree.(type) {
	case *Object:
		for _, key := range v.keys {
			value := v.fields[key]
			if key == "value" {
				if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
					count++
					continue
				}
			}
			count += CountValues(value)
		}
	case []any:
		for _, item := range v {
			count += CountValues(item)
		}
	}
	return count
}

// TransformValues returns a copy of the tree with fn applied to every string
// leaf stored under a "value" key. All other structure is copied verbatim.
func TransformValues(tree any, fn func(string) string) any {
	switch v := tree.(type) {
	case *Object:
		out := NewObject()
		for _, key := range v.keys {
			value := v.fields[key]
			if key == "value" {
				if s, ok := value.(string); ok {
					out.Set(key, fn(s))
					continue
				}
			}
			out.Set(key, TransformValues(value, fn))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = TransformValues(item, fn)
		}
		return out
	default:
		return v
	}
}
