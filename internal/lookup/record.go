package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a record. Value is nil for JSON null.
type Field struct {
	Name  string
	Value *string
}

// Record is a lookup hit. Fields keep the order the API sent them in.
type Record struct {
	Fields []Field
}

// Well-known display fields.
const (
	FieldFullName = "full_name"
	FieldPhone    = "phone"
	FieldCNIC     = "cnic"
	FieldAddress  = "address"
)

// Get returns the value of the named field.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name && f.Value != nil {
			return *f.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes the record as an object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if f.Value == nil {
			buf.WriteString("null")
			continue
		}
		v, err := json.Marshal(*f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping key order. Non-string scalars are
// kept in their JSON text form; nested values are kept as raw JSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}
	r.Fields = r.Fields[:0]
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		r.Fields = append(r.Fields, Field{Name: name, Value: scalar(raw)})
	}
	_, err = dec.Token()
	return err
}

func scalar(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}
	s = string(raw)
	return &s
}
