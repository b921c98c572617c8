package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	nedberrors "github.com/SReject/nedb/internal/errors"
	"github.com/SReject/nedb/internal/value"
)

func TestPersistenceAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Options{Filename: filepath.Join(dir, "data.db")})
	require.NoError(t, err)

	var doc1, doc2 value.Value
	require.NoError(t, doc1.UnmarshalJSON([]byte(`{"_id":"a","x":1}`)))
	require.NoError(t, doc2.UnmarshalJSON([]byte(`{"_id":"b","x":2}`)))

	require.NoError(t, p.PersistNewState([]value.Value{doc1, doc2}))

	result, err := p.LoadDatabase()
	require.NoError(t, err)
	require.Len(t, result.Docs, 2)
	require.Equal(t, 1.0, result.Docs["a"].Obj().Get("x").Float())
	require.Equal(t, 2.0, result.Docs["b"].Obj().Get("x").Float())
}

func TestPersistenceTombstoneDeletesOnFold(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Options{Filename: filepath.Join(dir, "data.db")})
	require.NoError(t, err)

	var doc value.Value
	require.NoError(t, doc.UnmarshalJSON([]byte(`{"_id":"a","x":1}`)))
	require.NoError(t, p.PersistNewState([]value.Value{doc}))

	require.NoError(t, p.PersistNewState([]value.Value{tombstone("a")}))

	result, err := p.LoadDatabase()
	require.NoError(t, err)
	require.Empty(t, result.Docs)
}

func tombstone(id string) value.Value {
	var v value.Value
	_ = v.UnmarshalJSON([]byte(`{"_id":"` + id + `","$$deleted":true}`))
	return v
}

func TestPersistenceIndexDefsFoldIntoOps(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Options{Filename: filepath.Join(dir, "data.db")})
	require.NoError(t, err)

	var createRec value.Value
	require.NoError(t, createRec.UnmarshalJSON([]byte(`{"$$indexCreated":{"fieldName":"x","unique":true,"sparse":false}}`)))
	require.NoError(t, p.PersistNewState([]value.Value{createRec}))

	result, err := p.LoadDatabase()
	require.NoError(t, err)
	require.Len(t, result.IndexOps, 1)
	require.Equal(t, IndexCreated, result.IndexOps[0].Kind)
	require.Equal(t, "x", result.IndexOps[0].Def.FieldName)
	require.True(t, result.IndexOps[0].Def.Unique)
}

func TestPersistenceCorruptionThresholdExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	// 1 good line, 1 corrupt line => 50% corrupt, exceeds default 0.1.
	content := `{"_id":"a","x":1}` + "\n" + "not json at all" + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := New(Options{Filename: path})
	require.NoError(t, err)

	_, err = p.LoadDatabase()
	require.ErrorIs(t, err, nedberrors.ErrCorruptionThresholdExceeded)
}

func TestPersistenceCompactionRewritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	p, err := New(Options{Filename: path})
	require.NoError(t, err)

	var doc1, doc2 value.Value
	require.NoError(t, doc1.UnmarshalJSON([]byte(`{"_id":"a","x":1}`)))
	require.NoError(t, doc2.UnmarshalJSON([]byte(`{"_id":"b","x":1}`)))
	require.NoError(t, p.PersistNewState([]value.Value{doc1}))
	require.NoError(t, p.PersistNewState([]value.Value{doc2}))
	require.NoError(t, p.PersistNewState([]value.Value{tombstone("a")}))

	require.NoError(t, p.PersistCachedDatabase([]value.Value{doc2}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)

	result, err := p.LoadDatabase()
	require.NoError(t, err)
	require.Len(t, result.Docs, 1)
	require.Contains(t, result.Docs, "b")
}

func TestPersistenceRejectsLopsidedHooks(t *testing.T) {
	_, err := New(Options{Filename: "x.db", AfterSerialization: func(s string) string { return s }})
	require.ErrorIs(t, err, nedberrors.ErrLopsidedHooks)
}

func TestPersistenceRejectsNonInverseHooks(t *testing.T) {
	_, err := New(Options{
		Filename:              "x.db",
		AfterSerialization:    func(s string) string { return s + "x" },
		BeforeDeserialization: func(s string) string { return s },
	})
	require.ErrorIs(t, err, nedberrors.ErrHooksNotInverse)
}

func TestPersistenceRejectsTildeFilename(t *testing.T) {
	_, err := New(Options{Filename: "x.db~"})
	require.ErrorIs(t, err, nedberrors.ErrReservedFilename)
}

func TestPersistenceAcceptsInverseHooks(t *testing.T) {
	p, err := New(Options{
		Filename:              filepath.Join(t.TempDir(), "data.db"),
		AfterSerialization:    func(s string) string { return "X" + s },
		BeforeDeserialization: func(s string) string { return strings.TrimPrefix(s, "X") },
	})
	require.NoError(t, err)
	require.NotNil(t, p)
}
