// Package serialize implements the one-line textual record encoding of
// §4.2: a document, tombstone or index-definition record per line, with
// the $$date transform living in value.Value itself. Encoding does not
// police keys; that is value.ValidateDocumentKeys' job on the insert and
// update paths. Hooks let a caller wrap each line (e.g. for encryption); the
// bijectivity of a hook pair is validated at construction time by
// internal/persistence, not here.
package serialize

import (
	"strings"

	"github.com/SReject/nedb/internal/value"
)

// Hooks are a bijective pair of line transforms applied after
// serialization and before deserialization, respectively.
type Hooks struct {
	AfterSerialization    func(string) string
	BeforeDeserialization func(string) string
}

// Codec serializes/deserializes single records, applying Hooks if set.
type Codec struct {
	hooks Hooks
}

// New returns a Codec. A zero Hooks is the identity transform.
func New(hooks Hooks) *Codec {
	return &Codec{hooks: hooks}
}

// Encode serializes v to one line (no trailing newline).
func (c *Codec) Encode(v value.Value) (string, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	line := string(data)
	if c.hooks.AfterSerialization != nil {
		line = c.hooks.AfterSerialization(line)
	}
	return line, nil
}

// Decode deserializes one line into a Value.
func (c *Codec) Decode(line string) (value.Value, error) {
	if c.hooks.BeforeDeserialization != nil {
		line = c.hooks.BeforeDeserialization(line)
	}
	var v value.Value
	if err := v.UnmarshalJSON([]byte(line)); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

// IsTombstone reports whether v is {_id, $$deleted: true}.
func IsTombstone(v value.Value) bool {
	if v.Kind() != value.Object {
		return false
	}
	d := v.Obj().Get("$$deleted")
	return d.Kind() == value.Bool && d.Bool()
}

// NewTombstone builds a tombstone record for id.
func NewTombstone(id string) value.Value {
	o := value.NewObj()
	o.Set("_id", value.Str(id))
	o.Set("$$deleted", value.Boolean(true))
	return value.ObjVal(o)
}

// IsIndexCreated reports whether v is an {$$indexCreated: {...}} record
// and returns its payload.
func IsIndexCreated(v value.Value) (value.Value, bool) {
	if v.Kind() != value.Object {
		return value.Value{}, false
	}
	payload := v.Obj().Get("$$indexCreated")
	if payload.Kind() != value.Object {
		return value.Value{}, false
	}
	return payload, true
}

// NewIndexCreated builds an {$$indexCreated: {...}} record.
func NewIndexCreated(fieldName string, unique, sparse bool, expireAfterSeconds *int64) value.Value {
	payload := value.NewObj()
	payload.Set("fieldName", value.Str(fieldName))
	payload.Set("unique", value.Boolean(unique))
	payload.Set("sparse", value.Boolean(sparse))
	if expireAfterSeconds != nil {
		payload.Set("expireAfterSeconds", value.Num(float64(*expireAfterSeconds)))
	}
	o := value.NewObj()
	o.Set("$$indexCreated", value.ObjVal(payload))
	return value.ObjVal(o)
}

// IsIndexRemoved reports whether v is an {$$indexRemoved: field} record
// and returns the field name.
func IsIndexRemoved(v value.Value) (string, bool) {
	if v.Kind() != value.Object {
		return "", false
	}
	f := v.Obj().Get("$$indexRemoved")
	if f.Kind() != value.String {
		return "", false
	}
	return f.Text(), true
}

// NewIndexRemoved builds an {$$indexRemoved: field} record.
func NewIndexRemoved(fieldName string) value.Value {
	o := value.NewObj()
	o.Set("$$indexRemoved", value.Str(fieldName))
	return value.ObjVal(o)
}

// IsDocument reports whether v carries an _id field, identifying it as a
// document record rather than a tombstone or index-definition record
// (tombstones also carry _id, so check IsTombstone first).
func IsDocument(v value.Value) bool {
	return v.Kind() == value.Object && v.Obj().Has("_id")
}

// DocID returns the _id field of a document or tombstone record.
func DocID(v value.Value) (string, bool) {
	if v.Kind() != value.Object {
		return "", false
	}
	id := v.Obj().Get("_id")
	if id.Kind() != value.String {
		return "", false
	}
	return id.Text(), true
}

// JoinLines joins encoded records with '\n', matching the datafile's
// newline-delimited format. It does not add a trailing newline; callers
// append one themselves when writing to keep the "final line is
// conventionally empty" convention under their control.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
