// Package query implements the match predicate, update modifiers and
// projection of §4.3: the only place index-assisted candidates are
// turned into a boolean per-document decision, or a document is rewritten
// by an update, or trimmed down for a caller.
package query

import (
	"regexp"
	"strings"

	"github.com/SReject/nedb/internal/value"
)

// StrCmp is a custom string comparator, or nil for the default
// lexicographic comparator (§4.1).
type StrCmp = func(a, b string) int

// Match implements match(doc, query) -> bool from §4.3.
func Match(doc, query value.Value, strCmp StrCmp) (bool, error) {
	if query.Kind() != value.Object {
		// Both sides reduce to a direct value comparison (used at the top
		// level only when a caller compares two primitives directly, and
		// recursively from $elemMatch/$pull when the subquery is itself
		// a bare value rather than an operator object).
		return value.Equal(doc, query), nil
	}

	for _, key := range query.Obj().Keys() {
		qval := query.Obj().Get(key)
		matched, err := matchTopLevelKey(doc, key, qval, strCmp)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func matchTopLevelKey(doc value.Value, key string, qval value.Value, strCmp StrCmp) (bool, error) {
	switch key {
	case "$and":
		return matchAll(doc, qval, strCmp)
	case "$or":
		return matchAny(doc, qval, strCmp)
	case "$not":
		matched, err := Match(doc, qval, strCmp)
		if err != nil {
			return false, err
		}
		return !matched, nil
	case "$where":
		pred := qval.Predicate()
		if pred == nil {
			return false, ErrWhereNonBoolean
		}
		return pred(doc)
	default:
		if strings.HasPrefix(key, "$") {
			return false, ErrUnknownLogicalOperator
		}
		return matchField(doc, key, qval, strCmp)
	}
}

func matchAll(doc, subqueries value.Value, strCmp StrCmp) (bool, error) {
	if subqueries.Kind() != value.Array {
		return false, ErrUnknownLogicalOperator
	}
	for _, sub := range subqueries.Items() {
		ok, err := Match(doc, sub, strCmp)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchAny(doc, subqueries value.Value, strCmp StrCmp) (bool, error) {
	if subqueries.Kind() != value.Array {
		return false, ErrUnknownLogicalOperator
	}
	for _, sub := range subqueries.Items() {
		ok, err := Match(doc, sub, strCmp)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matchField fetches the dot-value and decides whether the implicit
// array any-of applies before delegating to matchFieldValue.
func matchField(doc value.Value, fieldPath string, qval value.Value, strCmp StrCmp) (bool, error) {
	fieldVal := value.Get(doc, fieldPath)

	if fieldVal.Kind() == value.Array && !isExplicitArrayQuery(qval) {
		for _, item := range fieldVal.Items() {
			ok, err := matchFieldValue(item, qval, strCmp)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return matchFieldValue(fieldVal, qval, strCmp)
}

// isExplicitArrayQuery reports whether qval targets the array itself
// rather than its elements: a literal array (equality) or an operator
// object containing $size/$elemMatch.
func isExplicitArrayQuery(qval value.Value) bool {
	if qval.Kind() == value.Array {
		return true
	}
	if qval.Kind() == value.Object {
		return qval.Obj().Has("$size") || qval.Obj().Has("$elemMatch")
	}
	return false
}

// matchFieldValue compares a single (non-fanned-out) value against a
// query value: either literal equality or a set of comparison operators.
func matchFieldValue(fieldVal, qval value.Value, strCmp StrCmp) (bool, error) {
	if qval.Kind() != value.Object {
		return value.Equal(fieldVal, qval), nil
	}

	keys := qval.Obj().Keys()
	hasOperator, hasLiteral := false, false
	for _, k := range keys {
		if strings.HasPrefix(k, "$") {
			hasOperator = true
		} else {
			hasLiteral = true
		}
	}
	if hasOperator && hasLiteral {
		return false, ErrMixedOperatorsAndLiterals
	}
	if !hasOperator {
		return value.Equal(fieldVal, qval), nil
	}

	for _, op := range keys {
		ok, err := applyOperator(fieldVal, op, qval.Obj().Get(op), strCmp)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func applyOperator(fieldVal value.Value, op string, arg value.Value, strCmp StrCmp) (bool, error) {
	switch op {
	case "$lt", "$lte", "$gt", "$gte":
		return compareOp(fieldVal, arg, op, strCmp), nil
	case "$ne":
		return !value.Equal(fieldVal, arg), nil
	case "$in":
		return inSet(fieldVal, arg, false)
	case "$nin":
		return inSet(fieldVal, arg, true)
	case "$regex":
		return matchRegex(fieldVal, arg)
	case "$exists":
		want := truthy(arg)
		exists := !fieldVal.IsUndefined()
		return exists == want, nil
	case "$size":
		if fieldVal.Kind() != value.Array {
			return false, nil
		}
		return float64(len(fieldVal.Items())) == arg.Float(), nil
	case "$elemMatch":
		if fieldVal.Kind() != value.Array {
			return false, ErrElemMatchExpectsArray
		}
		for _, item := range fieldVal.Items() {
			ok, err := Match(item, arg, strCmp)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, ErrUnknownOperator
	}
}

// compareOp reports whether fieldVal op arg holds under the total
// ordering, treating NaN as incomparable (always false) for every one of
// the four operators, per §4.1.
func compareOp(fieldVal, arg value.Value, op string, strCmp StrCmp) bool {
	if isNaN(fieldVal) || isNaN(arg) {
		return false
	}
	c := value.Compare(fieldVal, arg, strCmp)
	switch op {
	case "$lt":
		return c < 0
	case "$lte":
		return c <= 0
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	default:
		return false
	}
}

func isNaN(v value.Value) bool {
	return v.Kind() == value.Number && v.Float() != v.Float()
}

func inSet(fieldVal, arg value.Value, negate bool) (bool, error) {
	if arg.Kind() != value.Array {
		return false, ErrInExpectsArray
	}
	found := false
	for _, item := range arg.Items() {
		if value.Equal(fieldVal, item) {
			found = true
			break
		}
	}
	if negate {
		return !found, nil
	}
	return found, nil
}

func matchRegex(fieldVal, arg value.Value) (bool, error) {
	if fieldVal.Kind() != value.String {
		return false, nil
	}
	if arg.Kind() != value.String {
		return false, ErrRegexExpectsString
	}
	re, err := regexp.Compile(arg.Text())
	if err != nil {
		return false, err
	}
	return re.MatchString(fieldVal.Text()), nil
}

// truthy mirrors the source's JS-truthiness test for $exists' argument
// and for projection's 1/0 flags: a Number is truthy unless it is
// exactly 0, a Bool is truthy when true, a String unless it is empty;
// Null and Undefined are falsy, and dates, arrays and objects are truthy.
func truthy(v value.Value) bool {
	switch v.Kind() {
	case value.Bool:
		return v.Bool()
	case value.Number:
		return v.Float() != 0
	case value.String:
		return v.Text() != ""
	case value.Null, value.Undefined:
		return false
	default:
		return true
	}
}
