package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderingPrecedence(t *testing.T) {
	ordered := []Value{
		Undef(),
		Nil(),
		Num(1),
		Str("a"),
		Boolean(true),
		DateMillis(1000),
		Arr(Num(1)),
		ObjVal(objWith("a", Num(1))),
	}
	for i := 0; i < len(ordered)-1; i++ {
		require.Negative(t, Compare(ordered[i], ordered[i+1], nil), "index %d should sort before %d", i, i+1)
		require.Positive(t, Compare(ordered[i+1], ordered[i], nil))
	}
}

func objWith(kv ...interface{}) *Obj {
	o := NewObj()
	for i := 0; i < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1].(Value))
	}
	return o
}

func TestCompareNumbers(t *testing.T) {
	require.Equal(t, -1, Compare(Num(1), Num(2), nil))
	require.Equal(t, 1, Compare(Num(2), Num(1), nil))
	require.Equal(t, 0, Compare(Num(1), Num(1), nil))
	nan := Num(0)
	nan.n = nan.n / nan.n // produce NaN without relying on math import
	require.Equal(t, 0, Compare(nan, Num(1), nil))
}

func TestCompareArraysShorterSmaller(t *testing.T) {
	a := Arr(Num(1))
	b := Arr(Num(1), Num(2))
	require.Equal(t, -1, Compare(a, b, nil))
}

func TestCompareCustomStringComparator(t *testing.T) {
	reverse := func(a, b string) int { return StringCompare(b, a) }
	require.Equal(t, 1, Compare(Str("a"), Str("b"), reverse))
}

func TestEqualUndefinedNeverEqual(t *testing.T) {
	require.False(t, Equal(Undef(), Undef()))
	require.False(t, Equal(Undef(), Nil()))
}

func TestEqualArraysElementwise(t *testing.T) {
	require.True(t, Equal(Arr(Num(1), Num(2)), Arr(Num(1), Num(2))))
	require.False(t, Equal(Arr(Num(1), Num(2)), Arr(Num(1))))
}

func TestGetDotValueObjectPath(t *testing.T) {
	inner := NewObj()
	inner.Set("c", Num(42))
	mid := NewObj()
	mid.Set("b", ObjVal(inner))
	root := NewObj()
	root.Set("a", ObjVal(mid))

	got := Get(ObjVal(root), "a.b.c")
	require.Equal(t, Number, got.Kind())
	require.Equal(t, 42.0, got.Float())

	require.True(t, Get(ObjVal(root), "a.b.missing").IsUndefined())
}

func TestGetDotValueArrayIndex(t *testing.T) {
	arr := Arr(Str("x"), Str("y"), Str("z"))
	got := Get(arr, "1")
	require.Equal(t, "y", got.Text())
}

func TestGetDotValueArrayFanOut(t *testing.T) {
	o1 := NewObj()
	o1.Set("n", Num(1))
	o2 := NewObj()
	o2.Set("n", Num(2))
	arr := Arr(ObjVal(o1), ObjVal(o2))

	got := Get(arr, "n")
	require.Equal(t, Array, got.Kind())
	require.Len(t, got.Items(), 2)
	require.Equal(t, 1.0, got.Items()[0].Float())
	require.Equal(t, 2.0, got.Items()[1].Float())
}

func TestSetAutoCreatesIntermediates(t *testing.T) {
	root := ObjVal(NewObj())
	root = Set(root, "a.b.c", Num(7))
	got := Get(root, "a.b.c")
	require.Equal(t, 7.0, got.Float())
}

func TestUnsetNoOpsOnMissingPath(t *testing.T) {
	root := ObjVal(NewObj())
	require.NotPanics(t, func() {
		Unset(root, "a.b.c")
	})
}

func TestCloneStrictDropsReservedKeys(t *testing.T) {
	o := NewObj()
	o.Set("ok", Num(1))
	o.Set("$bad", Num(2))
	o.Set("a.b", Num(3))
	cloned := Clone(ObjVal(o), true)
	require.True(t, cloned.Obj().Has("ok"))
	require.False(t, cloned.Obj().Has("$bad"))
	require.False(t, cloned.Obj().Has("a.b"))
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewObj()
	inner.Set("n", Num(1))
	outer := NewObj()
	outer.Set("inner", ObjVal(inner))
	cloned := Clone(ObjVal(outer), false)

	inner.Set("n", Num(999))
	require.Equal(t, 1.0, cloned.Obj().Get("inner").Obj().Get("n").Float())
}

func TestJSONRoundTripPreservesOrderAndDates(t *testing.T) {
	o := NewObj()
	o.Set("z", Str("last-inserted-first-key"))
	o.Set("a", DateMillis(1700000000000))
	o.Set("arr", Arr(Num(1), Num(2), Str("x")))
	doc := ObjVal(o)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.Contains(t, string(data), `"$$date":1700000000000`)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, Equal(doc, back))
	require.Equal(t, []string{"z", "a", "arr"}, back.Obj().Keys())
}

func TestValidateFieldName(t *testing.T) {
	require.NoError(t, ValidateFieldName("ok"))
	require.NoError(t, ValidateFieldName("$$date"))
	require.Error(t, ValidateFieldName("a.b"))
	require.Error(t, ValidateFieldName("$set"))
}
