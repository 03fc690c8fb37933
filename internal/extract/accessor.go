package extract

// accessor.go isolates every leniency/strictness decision about reading JSON fields.
//
// Require* fails with ErrMissingField when a field is absent or JSON null, and with
// ErrInvalidField when it is present but cannot be read as the requested type.
// Optional* returns the caller's default for absent or null fields and is otherwise
// as strict as Require*.
//
// Numbers are read from their literal text so 64-bit ids survive intact. Quoted
// numbers and integral floats (12.0) are accepted, matching what the upstream API
// has been observed to send.

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Object is one decoded JSON object whose members are decoded on access
type Object struct {
	path   string
	fields map[string]json.RawMessage
}

// DecodeObject decodes raw as a JSON object located at path
func DecodeObject(path string, raw []byte) (Object, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return Object{}, &FieldError{Path: path, Err: ErrMissingField, Detail: "null"}
	}
	if len(raw) == 0 || raw[0] != '{' {
		return Object{}, &FieldError{Path: path, Err: ErrInvalidField, Detail: "expected object, got " + describe(raw)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Object{}, &FieldError{Path: path, Err: ErrMalformedLine, Detail: err.Error()}
	}
	return Object{path: path, fields: fields}, nil
}

// Path returns the JSON path of o
func (o Object) Path() string {
	return o.path
}

// Has reports whether name is present and not null
func (o Object) Has(name string) bool {
	_, ok := o.Optional(name)
	return ok
}

// Optional returns the raw member name, or false if it is absent or null
func (o Object) Optional(name string) (json.RawMessage, bool) {
	raw, ok := o.fields[name]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, false
	}
	return raw, true
}

func (o Object) fieldPath(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

func (o Object) require(name string) (json.RawMessage, error) {
	raw, ok := o.fields[name]
	if !ok {
		return nil, &FieldError{Path: o.fieldPath(name), Err: ErrMissingField}
	}
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, &FieldError{Path: o.fieldPath(name), Err: ErrMissingField, Detail: "null"}
	}
	return raw, nil
}

func (o Object) invalid(name, want string, raw []byte) error {
	return &FieldError{
		Path:   o.fieldPath(name),
		Err:    ErrInvalidField,
		Detail: fmt.Sprintf("expected %s, got %s", want, describe(raw)),
	}
}

// RequireInt32 reads a required integer that must fit in 32 bits
func (o Object) RequireInt32(name string) (int32, error) {
	raw, err := o.require(name)
	if err != nil {
		return 0, err
	}
	v, ok := parseInt(raw, 32)
	if !ok {
		return 0, o.invalid(name, "int32", raw)
	}
	return int32(v), nil
}

// RequireInt64 reads a required 64-bit integer
func (o Object) RequireInt64(name string) (int64, error) {
	raw, err := o.require(name)
	if err != nil {
		return 0, err
	}
	v, ok := parseInt(raw, 64)
	if !ok {
		return 0, o.invalid(name, "int64", raw)
	}
	return v, nil
}

// RequireFloat64 reads a required number
func (o Object) RequireFloat64(name string) (float64, error) {
	raw, err := o.require(name)
	if err != nil {
		return 0, err
	}
	text, ok := scalarText(raw)
	if !ok {
		return 0, o.invalid(name, "number", raw)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, o.invalid(name, "number", raw)
	}
	return v, nil
}

// RequireBool reads a required boolean; "true"/"false" strings are accepted
func (o Object) RequireBool(name string) (bool, error) {
	raw, err := o.require(name)
	if err != nil {
		return false, err
	}
	switch text, _ := scalarText(raw); strings.ToLower(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, o.invalid(name, "bool", raw)
}

// RequireString reads a required string; bare numbers are read as their literal text
func (o Object) RequireString(name string) (string, error) {
	raw, err := o.require(name)
	if err != nil {
		return "", err
	}
	text, ok := scalarText(raw)
	if !ok {
		return "", o.invalid(name, "string", raw)
	}
	return text, nil
}

// RequireArray reads a required JSON array
func (o Object) RequireArray(name string) ([]json.RawMessage, error) {
	raw, err := o.require(name)
	if err != nil {
		return nil, err
	}
	return o.array(name, raw)
}

// OptionalInt32 reads name, returning def when it is absent or null
func (o Object) OptionalInt32(name string, def int32) (int32, error) {
	if !o.Has(name) {
		return def, nil
	}
	return o.RequireInt32(name)
}

// OptionalInt64 reads name, returning def when it is absent or null
func (o Object) OptionalInt64(name string, def int64) (int64, error) {
	if !o.Has(name) {
		return def, nil
	}
	return o.RequireInt64(name)
}

// OptionalArray reads name as an array, returning nil when it is absent or null
func (o Object) OptionalArray(name string) ([]json.RawMessage, error) {
	raw, ok := o.Optional(name)
	if !ok {
		return nil, nil
	}
	return o.array(name, raw)
}

func (o Object) array(name string, raw json.RawMessage) ([]json.RawMessage, error) {
	if raw[0] != '[' {
		return nil, o.invalid(name, "array", raw)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &FieldError{Path: o.fieldPath(name), Err: ErrMalformedLine, Detail: err.Error()}
	}
	return elems, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(raw, []byte("null"))
}

// scalarText returns the text of a JSON string or number literal
func scalarText(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case '{', '[':
		return "", false
	}
	return string(raw), true
}

func parseInt(raw []byte, bitSize int) (int64, bool) {
	text, ok := scalarText(raw)
	if !ok {
		return 0, false
	}
	if v, err := strconv.ParseInt(text, 10, bitSize); err == nil {
		return v, true
	}

	// Integral floats such as 12.0 or 1e3
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	limit := math.Ldexp(1, bitSize-1)
	if f < -limit || f >= limit {
		return 0, false
	}
	return int64(f), true
}

// describe abbreviates a raw value for error messages
func describe(raw []byte) string {
	const maxLen = 32
	if len(raw) == 0 {
		return "nothing"
	}
	if len(raw) > maxLen {
		return string(raw[:maxLen]) + "..."
	}
	return string(raw)
}
