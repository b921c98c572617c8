package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SReject/nedb/internal/value"
)

func doc(t *testing.T, jsonStr string) value.Value {
	t.Helper()
	var v value.Value
	require.NoError(t, v.UnmarshalJSON([]byte(jsonStr)))
	return v
}

func TestIndexInsertAndGetMatching(t *testing.T) {
	idx := New(Options{FieldName: "x"})
	a := doc(t, `{"_id":"a","x":1}`)
	b := doc(t, `{"_id":"b","x":2}`)

	require.NoError(t, idx.Insert(a, b))

	got := idx.GetMatching(value.Num(1))
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Obj().Get("_id").Text())

	got = idx.GetMatching(value.Num(1), value.Num(2))
	require.Len(t, got, 2)
}

func TestIndexUniqueViolationRollback(t *testing.T) {
	idx := New(Options{FieldName: "x", Unique: true})
	a := doc(t, `{"_id":"a","x":1}`)
	b := doc(t, `{"_id":"b","x":1}`)

	err := idx.Insert(a, b)
	require.ErrorIs(t, err, ErrUniqueViolation)

	// a must have been rolled back along with b's failed insertion.
	require.Equal(t, 0, idx.Len())
}

func TestIndexSparseSkipsUndefined(t *testing.T) {
	idx := New(Options{FieldName: "x", Sparse: true})
	a := doc(t, `{"_id":"a"}`)
	require.NoError(t, idx.Insert(a))
	require.Equal(t, 0, idx.Len())
}

func TestIndexNonSparseIndexesUndefined(t *testing.T) {
	idx := New(Options{FieldName: "x"})
	a := doc(t, `{"_id":"a"}`)
	require.NoError(t, idx.Insert(a))
	require.Equal(t, 1, idx.Len())
}

func TestIndexArrayFanOutAndUniqueRollback(t *testing.T) {
	idx := New(Options{FieldName: "tags", Unique: true})
	a := doc(t, `{"_id":"a","tags":["x","y"]}`)
	require.NoError(t, idx.Insert(a))

	// b shares "y" with a under a unique index: must fail and roll back
	// b's own partial insertion under "z".
	b := doc(t, `{"_id":"b","tags":["z","y"]}`)
	err := idx.Insert(b)
	require.ErrorIs(t, err, ErrUniqueViolation)

	got := idx.GetMatching(value.Str("z"))
	require.Empty(t, got)

	got = idx.GetMatching(value.Str("x"), value.Str("y"))
	require.Len(t, got, 1)
}

func TestIndexArrayDedupSameKeyOnce(t *testing.T) {
	idx := New(Options{FieldName: "tags"})
	a := doc(t, `{"_id":"a","tags":["x","x","y"]}`)
	require.NoError(t, idx.Insert(a))
	require.Equal(t, 1, idx.Len())

	got := idx.GetMatching(value.Str("x"))
	require.Len(t, got, 1)
}

func TestIndexRemove(t *testing.T) {
	idx := New(Options{FieldName: "x"})
	a := doc(t, `{"_id":"a","x":1}`)
	require.NoError(t, idx.Insert(a))
	idx.Remove(a)
	require.Equal(t, 0, idx.Len())
	require.Empty(t, idx.GetMatching(value.Num(1)))
}

func TestIndexUpdateRevertsOnFailure(t *testing.T) {
	idx := New(Options{FieldName: "x", Unique: true})
	a := doc(t, `{"_id":"a","x":1}`)
	b := doc(t, `{"_id":"b","x":2}`)
	require.NoError(t, idx.Insert(a, b))

	newA := doc(t, `{"_id":"a","x":2}`)
	err := idx.Update(a, newA)
	require.ErrorIs(t, err, ErrUniqueViolation)

	got := idx.GetMatching(value.Num(1))
	require.Len(t, got, 1, "old value for a must be restored after failed update")
}

func TestIndexGetBetweenBounds(t *testing.T) {
	idx := New(Options{FieldName: "n"})
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, idx.Insert(doc(t, `{"_id":"`+id+`","n":`+itoa(i)+`}`)))
	}

	q := doc(t, `{"$gte":1,"$lt":4}`)
	got := idx.GetBetweenBounds(q)
	require.Len(t, got, 3) // n=1,2,3
}

func TestIndexGetAllOrdered(t *testing.T) {
	idx := New(Options{FieldName: "n"})
	require.NoError(t, idx.Insert(doc(t, `{"_id":"b","n":2}`)))
	require.NoError(t, idx.Insert(doc(t, `{"_id":"a","n":1}`)))

	all := idx.GetAll()
	require.Len(t, all, 2)
	require.Equal(t, 1.0, all[0].Obj().Get("n").Float())
	require.Equal(t, 2.0, all[1].Obj().Get("n").Float())
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}
