package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchLiteralEquality(t *testing.T) {
	doc := mustDoc(t, `{"a":1,"b":"x"}`)
	ok, err := Match(doc, mustDoc(t, `{"a":1}`), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match(doc, mustDoc(t, `{"a":2}`), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchComparisonOperators(t *testing.T) {
	doc := mustDoc(t, `{"age":30}`)
	ok, err := Match(doc, mustDoc(t, `{"age":{"$gte":18,"$lt":65}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchImplicitArrayAny(t *testing.T) {
	doc := mustDoc(t, `{"tags":["a","b","c"]}`)
	ok, err := Match(doc, mustDoc(t, `{"tags":"b"}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchElemMatch(t *testing.T) {
	doc := mustDoc(t, `{"items":[{"qty":1},{"qty":5}]}`)
	ok, err := Match(doc, mustDoc(t, `{"items":{"$elemMatch":{"qty":{"$gt":3}}}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchAndOr(t *testing.T) {
	doc := mustDoc(t, `{"a":1,"b":2}`)
	ok, err := Match(doc, mustDoc(t, `{"$and":[{"a":1},{"b":2}]}`), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match(doc, mustDoc(t, `{"$or":[{"a":9},{"b":2}]}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchNot(t *testing.T) {
	doc := mustDoc(t, `{"a":1}`)
	ok, err := Match(doc, mustDoc(t, `{"$not":{"a":2}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchExists(t *testing.T) {
	doc := mustDoc(t, `{"a":1}`)
	ok, err := Match(doc, mustDoc(t, `{"b":{"$exists":false}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match(doc, mustDoc(t, `{"a":{"$exists":true}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchRegex(t *testing.T) {
	doc := mustDoc(t, `{"name":"hello world"}`)
	ok, err := Match(doc, mustDoc(t, `{"name":{"$regex":"^hello"}}`), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchMixedOperatorsAndLiteralsRejected(t *testing.T) {
	doc := mustDoc(t, `{"a":1}`)
	_, err := Match(doc, mustDoc(t, `{"a":{"$gt":0,"b":1}}`), nil)
	require.ErrorIs(t, err, ErrMixedOperatorsAndLiterals)
}
