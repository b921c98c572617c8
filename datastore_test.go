package nedb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/SReject/nedb/internal/value"
)

func mustDoc(t *testing.T, jsonStr string) value.Value {
	t.Helper()
	var v value.Value
	require.NoError(t, v.UnmarshalJSON([]byte(jsonStr)))
	return v
}

func newMemStore(t *testing.T) *Datastore {
	t.Helper()
	cfg := *Default()
	ds, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestScenarioInsertThenSortedFind(t *testing.T) {
	ds := newMemStore(t)

	_, err := ds.Insert(mustDoc(t, `{"a":1}`))
	require.NoError(t, err)
	_, err = ds.Insert(mustDoc(t, `{"a":2}`))
	require.NoError(t, err)

	docs, err := ds.Find(value.ObjVal(value.NewObj())).Sort(SortField{Field: "a", Direction: 1}).Exec()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, 1.0, docs[0].Obj().Get("a").Float())
	require.Equal(t, 2.0, docs[1].Obj().Get("a").Float())
}

func TestScenarioUniqueIndexViolation(t *testing.T) {
	ds := newMemStore(t)
	require.NoError(t, ds.EnsureIndex(EnsureIndexOptions{FieldName: "x", Unique: true}))

	_, err := ds.Insert(mustDoc(t, `{"x":1}`))
	require.NoError(t, err)

	_, err = ds.Insert(mustDoc(t, `{"x":1}`))
	require.Error(t, err)

	docs, err := ds.Find(value.ObjVal(value.NewObj())).Exec()
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestScenarioUpdateIncThenReload(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Filename: filepath.Join(dir, "data.db"), Autoload: true}
	ds, err := New(cfg)
	require.NoError(t, err)

	_, err = ds.Insert(mustDoc(t, `{"_id":"k","n":1}`))
	require.NoError(t, err)

	res, err := ds.Update(mustDoc(t, `{"_id":"k"}`), mustDoc(t, `{"$inc":{"n":2}}`), UpdateOptions{ReturnUpdatedDocs: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.NumReplaced)
	require.Equal(t, 3.0, res.Docs[0].Obj().Get("n").Float())
	require.NoError(t, ds.Close())

	ds2, err := New(cfg)
	require.NoError(t, err)
	defer ds2.Close()

	doc, err := ds2.FindOne(mustDoc(t, `{"_id":"k"}`), value.Undef())
	require.NoError(t, err)
	require.Equal(t, 3.0, doc.Obj().Get("n").Float())
}

func TestScenarioTTLIndexEvictsExpiredDocument(t *testing.T) {
	ds := newMemStore(t)
	zero := int64(0)
	require.NoError(t, ds.EnsureIndex(EnsureIndexOptions{FieldName: "d", ExpireAfterSeconds: &zero}))

	past := time.Now().Add(-1 * time.Second).UnixMilli()
	doc := value.NewObj()
	doc.Set("d", value.DateMillis(past))
	_, err := ds.Insert(value.ObjVal(doc))
	require.NoError(t, err)

	docs, err := ds.Find(value.ObjVal(value.NewObj())).Exec()
	require.NoError(t, err)
	require.Empty(t, docs)

	require.Equal(t, 0, ds.indexes["_id"].Len())
}

func TestScenarioCorruptDatafileExceedsThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	content := `{"_id":"a","x":1}` + "\n" + "not json at all" + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ds, err := New(Config{Filename: path})
	require.NoError(t, err)
	defer ds.Close()

	err = ds.Load()
	require.Error(t, err)
}

func TestScenarioArrayFieldImplicitAnyMatch(t *testing.T) {
	ds := newMemStore(t)
	_, err := ds.Insert(mustDoc(t, `{"a":[1,2,3]}`))
	require.NoError(t, err)

	docs, err := ds.Find(mustDoc(t, `{"a":2}`)).Exec()
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestCountAndFindOneEmpty(t *testing.T) {
	ds := newMemStore(t)
	_, err := ds.Insert(mustDoc(t, `{"a":1}`))
	require.NoError(t, err)

	n, err := ds.Count(value.ObjVal(value.NewObj()))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	doc, err := ds.FindOne(mustDoc(t, `{"a":99}`), value.Undef())
	require.NoError(t, err)
	require.True(t, doc.IsUndefined())
}

func TestRemoveMulti(t *testing.T) {
	ds := newMemStore(t)
	_, err := ds.Insert(mustDoc(t, `{"a":1}`))
	require.NoError(t, err)
	_, err = ds.Insert(mustDoc(t, `{"a":1}`))
	require.NoError(t, err)
	_, err = ds.Insert(mustDoc(t, `{"a":2}`))
	require.NoError(t, err)

	n, err := ds.Remove(mustDoc(t, `{"a":1}`), RemoveOptions{Multi: true})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	remaining, err := ds.Find(value.ObjVal(value.NewObj())).Exec()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestProjectionShapeMatchesExpected(t *testing.T) {
	ds := newMemStore(t)
	_, err := ds.Insert(mustDoc(t, `{"name":"alice","age":30,"email":"a@example.com"}`))
	require.NoError(t, err)

	docs, err := ds.Find(value.ObjVal(value.NewObj())).Projection(mustDoc(t, `{"name":1,"age":1}`)).Exec()
	require.NoError(t, err)
	require.Len(t, docs, 1)

	data, err := docs[0].MarshalJSON()
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	delete(got, "_id")

	want := map[string]interface{}{"name": "alice", "age": 30.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projected document shape mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertInsertsWhenNothingMatches(t *testing.T) {
	ds := newMemStore(t)
	res, err := ds.Update(mustDoc(t, `{"name":"alice"}`), mustDoc(t, `{"$set":{"age":30}}`), UpdateOptions{Upsert: true, ReturnUpdatedDocs: true})
	require.NoError(t, err)
	require.True(t, res.Upserted)
	require.Equal(t, 1, res.NumReplaced)
	require.Len(t, res.Docs, 1)

	n, err := ds.Count(value.ObjVal(value.NewObj()))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

