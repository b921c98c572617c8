package value

import (
	"strconv"
	"strings"

	nedberrors "github.com/SReject/nedb/internal/errors"
)

// SplitPath splits a dot path "a.b.c" into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get implements getDotValue(obj, path) from §4.1: if at any step the
// current value is an array and the next segment parses as a
// non-negative integer, index into the array; otherwise map the
// remaining path across all array elements and return the resulting
// array. Returns Undefined for missing paths.
func Get(v Value, path string) Value {
	return getSegments(v, SplitPath(path))
}

func getSegments(v Value, segments []string) Value {
	if len(segments) == 0 {
		return v
	}
	seg := segments[0]
	rest := segments[1:]

	switch v.kind {
	case Object:
		if !v.obj.Has(seg) {
			return Undef()
		}
		return getSegments(v.obj.Get(seg), rest)
	case Array:
		if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 {
			if idx >= len(v.arr) {
				return Undef()
			}
			return getSegments(v.arr[idx], rest)
		}
		// Map the remaining path (including this segment) across elements.
		out := make([]Value, 0, len(v.arr))
		for _, item := range v.arr {
			mapped := getSegments(item, segments)
			out = append(out, mapped)
		}
		return Value{kind: Array, arr: out}
	default:
		return Undef()
	}
}

// Set walks path into v (which must be an Object), auto-creating
// intermediate objects, and assigns newVal at the final segment.
// Intermediate arrays are not auto-created; a numeric segment against a
// missing intermediate still creates an Object (matching the source's
// behavior of only ever materializing plain objects for unset paths).
func Set(v Value, path string, newVal Value) Value {
	segments := SplitPath(path)
	if len(segments) == 0 || v.kind != Object {
		return v
	}
	setSegments(v.obj, segments, newVal)
	return v
}

func setSegments(o *Obj, segments []string, newVal Value) {
	seg := segments[0]
	if len(segments) == 1 {
		o.Set(seg, newVal)
		return
	}
	child := o.Get(seg)
	if child.kind != Object {
		child = ObjVal(NewObj())
	}
	setSegments(child.obj, segments[1:], newVal)
	o.Set(seg, child)
}

// Unset removes path from v (an Object), no-oping if any intermediate
// segment is missing, per §4.3 ($unset no-ops on missing paths).
func Unset(v Value, path string) {
	segments := SplitPath(path)
	if len(segments) == 0 || v.kind != Object {
		return
	}
	unsetSegments(v.obj, segments)
}

func unsetSegments(o *Obj, segments []string) {
	seg := segments[0]
	if len(segments) == 1 {
		o.Delete(seg)
		return
	}
	child := o.Get(seg)
	if child.kind != Object {
		return
	}
	unsetSegments(child.obj, segments[1:])
}

// IsReservedSentinel reports whether key is one of the four serialization
// sentinels, the only '$'-prefixed keys ever legal on a record.
func IsReservedSentinel(key string) bool {
	switch key {
	case "$$date", "$$deleted", "$$indexCreated", "$$indexRemoved":
		return true
	default:
		return false
	}
}

// ValidateFieldName checks a single field-name segment against §3's rule:
// no '.' and no leading '$' except the reserved sentinels.
func ValidateFieldName(name string) error {
	if IsReservedSentinel(name) {
		return nil
	}
	if strings.Contains(name, ".") {
		return &FieldNameError{Field: name, Reason: "contains '.'"}
	}
	if strings.HasPrefix(name, "$") {
		return &FieldNameError{Field: name, Reason: "starts with '$'"}
	}
	return nil
}

// FieldNameError reports a key-validation failure (§7 kind 2).
type FieldNameError struct {
	Field  string
	Reason string
}

func (e *FieldNameError) Error() string {
	return "invalid field name " + strconv.Quote(e.Field) + ": " + e.Reason
}

// Unwrap lets callers match any FieldNameError with
// errors.Is(err, ErrInvalidFieldName) from internal/errors.
func (e *FieldNameError) Unwrap() error { return nedberrors.ErrInvalidFieldName }

// ValidateFieldPath validates every dot-separated segment of path against
// ValidateFieldName. It backs modifier-target validation (a $set/$push/etc.
// field argument like "a.b.c") and ensureIndex's fieldName (§3); document
// keys go through ValidateDocumentKeys instead, which checks each key whole.
func ValidateFieldPath(path string) error {
	for _, seg := range SplitPath(path) {
		if err := ValidateFieldName(seg); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDocumentKeys recursively validates every object key in v as a
// single field name: a key containing '.' is rejected, and so are the
// reserved sentinels, which only ever appear on serialized records.
func ValidateDocumentKeys(v Value) error {
	switch v.kind {
	case Object:
		for _, k := range v.obj.keys {
			if IsReservedSentinel(k) {
				return &FieldNameError{Field: k, Reason: "reserved for serialization"}
			}
			if err := ValidateFieldName(k); err != nil {
				return err
			}
			if err := ValidateDocumentKeys(v.obj.Get(k)); err != nil {
				return err
			}
		}
	case Array:
		for _, item := range v.arr {
			if err := ValidateDocumentKeys(item); err != nil {
				return err
			}
		}
	}
	return nil
}
