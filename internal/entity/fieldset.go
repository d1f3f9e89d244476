package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

// Field is one key of a JSON object with its undecoded value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// FieldSet is a JSON object that remembers the order its keys arrived in.
type FieldSet struct {
	fields []Field
}

func NewFieldSet(fields ...Field) *FieldSet {
	out := &FieldSet{}
	for _, f := range fields {
		out.set(f.Key, f.Value)
	}
	return out
}

func (s *FieldSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Fields returns a copy of the entries in source order.
func (s *FieldSet) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *FieldSet) Get(key string) (json.RawMessage, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// set keeps the first position of a repeated key and the last value.
func (s *FieldSet) set(key string, value json.RawMessage) {
	for i := range s.fields {
		if s.fields[i].Key == key {
			s.fields[i].Value = value
			return
		}
	}
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

func (s *FieldSet) UnmarshalJSON(b []byte) error {
	fields, err := DecodeOrderedObject(b)
	if err != nil {
		return err
	}
	s.fields = nil
	for _, f := range fields {
		s.set(f.Key, f.Value)
	}
	return nil
}

func (s FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeOrderedObject reads a JSON object into its fields in source order.
// Any other JSON value is rejected with common.ErrMalformedPayload.
func DecodeOrderedObject(b []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object, got %v", common.ErrMalformedPayload, tok)
	}

	var out []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key is %T", common.ErrMalformedPayload, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", common.ErrMalformedPayload, key, err)
		}
		out = append(out, Field{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", common.ErrMalformedPayload)
	}
	return out, nil
}
