package query

import "strings"

import "github.com/SReject/nedb/internal/value"

// Modify implements modify(doc, updateQuery) -> newDoc from §4.3: either
// a whole-document replacement, or a set of modifiers applied to a copy
// of doc. In both cases _id is checked against doc's original _id at the
// end, since replacement and modification share the same immutability
// rule; a doc without an _id (an upsert base) only requires that the
// result has none either.
func Modify(doc, updateQuery value.Value) (value.Value, error) {
	hasModifier, hasLiteral := scanUpdateKeys(updateQuery)
	if hasModifier && hasLiteral {
		return value.Value{}, ErrMixedModifiersAndLiterals
	}

	var newDoc value.Value
	if !hasModifier {
		newDoc = value.Clone(updateQuery, false)
		if newDoc.Kind() != value.Object {
			newDoc = value.ObjVal(value.NewObj())
		}
		if !newDoc.Obj().Has("_id") {
			newDoc.Obj().Set("_id", doc.Obj().Get("_id"))
		}
	} else {
		newDoc = value.Clone(doc, false)
		for _, modKey := range updateQuery.Obj().Keys() {
			fn, ok := modifiers[modKey]
			if !ok {
				return value.Value{}, ErrUnknownModifier
			}
			args := updateQuery.Obj().Get(modKey)
			if args.Kind() != value.Object {
				return value.Value{}, ErrUnknownModifier
			}
			for _, field := range args.Obj().Keys() {
				if err := value.ValidateFieldPath(field); err != nil {
					return value.Value{}, err
				}
				if err := fn(newDoc, field, args.Obj().Get(field)); err != nil {
					return value.Value{}, err
				}
			}
		}
	}

	oldID := doc.Obj().Get("_id")
	newID := newDoc.Obj().Get("_id")
	if !(oldID.IsUndefined() && newID.IsUndefined()) && !value.Equal(oldID, newID) {
		return value.Value{}, ErrIDImmutable
	}
	return newDoc, nil
}

func scanUpdateKeys(updateQuery value.Value) (hasModifier, hasLiteral bool) {
	if updateQuery.Kind() != value.Object {
		return false, true
	}
	for _, k := range updateQuery.Obj().Keys() {
		if strings.HasPrefix(k, "$") {
			hasModifier = true
		} else {
			hasLiteral = true
		}
	}
	return hasModifier, hasLiteral
}

var modifiers = map[string]func(doc value.Value, field string, arg value.Value) error{
	"$set":      modSet,
	"$unset":    modUnset,
	"$inc":      modInc,
	"$min":      modMin,
	"$max":      modMax,
	"$push":     modPush,
	"$addToSet": modAddToSet,
	"$pop":      modPop,
	"$pull":     modPull,
}

func modSet(doc value.Value, field string, arg value.Value) error {
	value.Set(doc, field, arg)
	return nil
}

func modUnset(doc value.Value, field string, _ value.Value) error {
	value.Unset(doc, field)
	return nil
}

func modInc(doc value.Value, field string, arg value.Value) error {
	if arg.Kind() != value.Number {
		return ErrIncOnNonNumber
	}
	current := value.Get(doc, field)
	switch current.Kind() {
	case value.Undefined:
		value.Set(doc, field, arg)
	case value.Number:
		value.Set(doc, field, value.Num(current.Float()+arg.Float()))
	default:
		return ErrIncOnNonNumber
	}
	return nil
}

func modMin(doc value.Value, field string, arg value.Value) error {
	return modMinMax(doc, field, arg, -1)
}

func modMax(doc value.Value, field string, arg value.Value) error {
	return modMinMax(doc, field, arg, 1)
}

// modMinMax assigns arg when doc.field is absent, or when arg is
// strictly on the `want` side (want=-1 smaller for $min, +1 larger for
// $max) of the current value.
func modMinMax(doc value.Value, field string, arg value.Value, want int) error {
	current := value.Get(doc, field)
	if current.IsUndefined() {
		value.Set(doc, field, arg)
		return nil
	}
	c := value.Compare(arg, current, nil)
	if (want < 0 && c < 0) || (want > 0 && c > 0) {
		value.Set(doc, field, arg)
	}
	return nil
}

// pushSpec is the {$each, $slice} shape $push and $addToSet accept in
// place of a single value.
type pushSpec struct {
	items []value.Value
	slice value.Value // Undefined if not given
}

func parsePushSpec(arg value.Value) pushSpec {
	if arg.Kind() == value.Object && arg.Obj().Has("$each") {
		each := arg.Obj().Get("$each")
		items := each.Items()
		return pushSpec{items: items, slice: arg.Obj().Get("$slice")}
	}
	return pushSpec{items: []value.Value{arg}}
}

func modPush(doc value.Value, field string, arg value.Value) error {
	current := value.Get(doc, field)
	var items []value.Value
	switch current.Kind() {
	case value.Undefined:
		items = nil
	case value.Array:
		items = append([]value.Value(nil), current.Items()...)
	default:
		return ErrPushOnNonArray
	}

	spec := parsePushSpec(arg)
	items = append(items, spec.items...)

	if !spec.slice.IsUndefined() && spec.slice.Kind() == value.Number {
		items = applySlice(items, int(spec.slice.Float()))
	}
	value.Set(doc, field, value.ArrSlice(items))
	return nil
}

// applySlice keeps the first n elements (n >= 0) or the last |n| (n < 0).
func applySlice(items []value.Value, n int) []value.Value {
	if n >= 0 {
		if n < len(items) {
			return items[:n]
		}
		return items
	}
	keep := -n
	if keep >= len(items) {
		return items
	}
	return items[len(items)-keep:]
}

func modAddToSet(doc value.Value, field string, arg value.Value) error {
	current := value.Get(doc, field)
	var items []value.Value
	switch current.Kind() {
	case value.Undefined:
		items = nil
	case value.Array:
		items = append([]value.Value(nil), current.Items()...)
	default:
		return ErrAddToSetOnNonArray
	}

	spec := parsePushSpec(arg)
	for _, candidate := range spec.items {
		if !containsEqual(items, candidate) {
			items = append(items, candidate)
		}
	}
	value.Set(doc, field, value.ArrSlice(items))
	return nil
}

func containsEqual(items []value.Value, candidate value.Value) bool {
	for _, item := range items {
		if value.Equal(item, candidate) {
			return true
		}
	}
	return false
}

func modPop(doc value.Value, field string, arg value.Value) error {
	current := value.Get(doc, field)
	if current.Kind() != value.Array {
		return ErrPopOnNonArray
	}
	items := current.Items()
	if len(items) == 0 {
		return nil
	}
	if arg.Kind() != value.Number {
		return ErrPopOnNonArray
	}
	var out []value.Value
	if arg.Float() < 0 {
		out = append([]value.Value(nil), items[1:]...)
	} else {
		out = append([]value.Value(nil), items[:len(items)-1]...)
	}
	value.Set(doc, field, value.ArrSlice(out))
	return nil
}

func modPull(doc value.Value, field string, arg value.Value) error {
	current := value.Get(doc, field)
	if current.Kind() != value.Array {
		return ErrPullOnNonArray
	}
	var kept []value.Value
	for _, item := range current.Items() {
		matched, err := matchFieldValue(item, arg, nil)
		if err != nil {
			return err
		}
		if !matched {
			kept = append(kept, item)
		}
	}
	value.Set(doc, field, value.ArrSlice(kept))
	return nil
}
