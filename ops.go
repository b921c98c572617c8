package nedb

import (
	"strings"

	nedberrors "github.com/SReject/nedb/internal/errors"
	"github.com/SReject/nedb/internal/index"
	"github.com/SReject/nedb/internal/query"
	"github.com/SReject/nedb/internal/serialize"
	"github.com/SReject/nedb/internal/value"
)

// Insert adds one or more documents: each is deep-copied, assigned an
// _id and (if TimestampData is set) createdAt/updatedAt, validated, then
// inserted into every index and appended to the log, all-or-nothing
// (§4.8.1).
func (ds *Datastore) Insert(docs ...value.Value) ([]value.Value, error) {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return ds.insertSync(docs)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value.([]value.Value), nil
}

func (ds *Datastore) insertSync(docs []value.Value) ([]value.Value, error) {
	prepared := make([]value.Value, len(docs))
	for i, d := range docs {
		p, err := ds.prepareDocument(d)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	applied := make([]string, 0, len(ds.indexes))
	for name, idx := range ds.indexes {
		if err := idx.Insert(prepared...); err != nil {
			for _, n := range applied {
				ds.indexes[n].Remove(prepared...)
			}
			return nil, translateIndexErr(err)
		}
		applied = append(applied, name)
	}

	if err := ds.persist.PersistNewState(prepared); err != nil {
		for _, n := range applied {
			ds.indexes[n].Remove(prepared...)
		}
		return nil, err
	}

	ds.metrics.InsertsTotal.Add(float64(len(prepared)))
	ds.metrics.DocumentCount.Set(float64(ds.indexes["_id"].Len()))

	out := make([]value.Value, len(prepared))
	for i, d := range prepared {
		out[i] = value.Clone(d, false)
	}
	return out, nil
}

func (ds *Datastore) prepareDocument(doc value.Value) (value.Value, error) {
	if doc.Kind() != value.Object {
		return value.Value{}, nedberrors.ErrInvalidFieldName
	}
	cp := value.Clone(doc, false)
	if err := value.ValidateDocumentKeys(cp); err != nil {
		return value.Value{}, err
	}

	if !cp.Obj().Has("_id") || cp.Obj().Get("_id").IsUndefined() {
		id, err := ds.newDocID()
		if err != nil {
			return value.Value{}, err
		}
		cp.Obj().Set("_id", value.Str(id))
	}

	if ds.cfg.TimestampData {
		now := value.DateMillis(ds.now())
		if !cp.Obj().Has("createdAt") {
			cp.Obj().Set("createdAt", now)
		}
		if !cp.Obj().Has("updatedAt") {
			cp.Obj().Set("updatedAt", now)
		}
	}
	return cp, nil
}

// UpdateOptions controls Update's scope and return value.
type UpdateOptions struct {
	Multi             bool
	Upsert            bool
	ReturnUpdatedDocs bool
}

// UpdateResult reports the outcome of an Update call.
type UpdateResult struct {
	NumReplaced int
	Docs        []value.Value
	Upserted    bool
}

// Update applies updateQuery to every document matching filter (or just
// the first, unless Multi is set), rewriting every affected index
// entry transactionally before appending the new document versions
// (§4.8.2). With Upsert set and nothing matching, it inserts a document
// materialized from filter and updateQuery instead.
func (ds *Datastore) Update(filter, updateQuery value.Value, opts UpdateOptions) (UpdateResult, error) {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return ds.updateSync(filter, updateQuery, opts)
	})
	if res.Err != nil {
		return UpdateResult{}, res.Err
	}
	return res.Value.(UpdateResult), nil
}

func (ds *Datastore) updateSync(filter, updateQuery value.Value, opts UpdateOptions) (UpdateResult, error) {
	candidates := ds.getCandidates(filter, true)
	matched := make([]value.Value, 0, len(candidates))
	for _, c := range candidates {
		ok, err := query.Match(c, filter, ds.cfg.CompareStrings)
		if err != nil {
			return UpdateResult{}, err
		}
		if ok {
			matched = append(matched, c)
		}
	}

	if len(matched) == 0 {
		if !opts.Upsert {
			return UpdateResult{}, nil
		}
		newDoc, err := ds.materializeUpsert(filter, updateQuery)
		if err != nil {
			return UpdateResult{}, err
		}
		inserted, err := ds.insertSync([]value.Value{newDoc})
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{NumReplaced: 1, Docs: inserted, Upserted: true}, nil
	}

	if !opts.Multi {
		matched = matched[:1]
	}

	pairs := make([]index.Pair, len(matched))
	newDocs := make([]value.Value, len(matched))
	for i, old := range matched {
		nd, err := query.Modify(old, updateQuery)
		if err != nil {
			return UpdateResult{}, err
		}
		if ds.cfg.TimestampData {
			nd.Obj().Set("updatedAt", value.DateMillis(ds.now()))
		}
		if err := value.ValidateDocumentKeys(nd); err != nil {
			return UpdateResult{}, err
		}
		pairs[i] = index.Pair{Old: old, New: nd}
		newDocs[i] = nd
	}

	applied := make([]string, 0, len(ds.indexes))
	for name, idx := range ds.indexes {
		if err := idx.UpdateMultiple(pairs); err != nil {
			for _, n := range applied {
				_ = ds.indexes[n].UpdateMultiple(reversePairs(pairs))
			}
			return UpdateResult{}, translateIndexErr(err)
		}
		applied = append(applied, name)
	}

	if err := ds.persist.PersistNewState(newDocs); err != nil {
		for _, idx := range ds.indexes {
			_ = idx.UpdateMultiple(reversePairs(pairs))
		}
		return UpdateResult{}, err
	}

	ds.metrics.UpdatesTotal.Add(float64(len(newDocs)))

	result := UpdateResult{NumReplaced: len(newDocs)}
	if opts.ReturnUpdatedDocs {
		out := make([]value.Value, len(newDocs))
		for i, d := range newDocs {
			out[i] = value.Clone(d, false)
		}
		result.Docs = out
	}
	return result, nil
}

func reversePairs(pairs []index.Pair) []index.Pair {
	out := make([]index.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = index.Pair{Old: p.New, New: p.Old}
	}
	return out
}

// materializeUpsert builds the document an upsert inserts when filter
// matched nothing: a plain document if updateQuery carries no modifier
// keys, or filter's literal (non-operator) fields run through Modify
// otherwise.
func (ds *Datastore) materializeUpsert(filter, updateQuery value.Value) (value.Value, error) {
	if !hasModifierKey(updateQuery) {
		return value.Clone(updateQuery, false), nil
	}
	base := value.Clone(filter, true)
	if base.Kind() != value.Object {
		base = value.ObjVal(value.NewObj())
	}
	return query.Modify(base, updateQuery)
}

func hasModifierKey(v value.Value) bool {
	if v.Kind() != value.Object {
		return false
	}
	for _, k := range v.Obj().Keys() {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// RemoveOptions controls Remove's scope.
type RemoveOptions struct {
	Multi bool
}

// Remove deletes every document matching filter (or just the first,
// unless Multi is set), appending one tombstone per removal (§4.8.3).
func (ds *Datastore) Remove(filter value.Value, opts RemoveOptions) (int, error) {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return ds.removeSync(filter, opts)
	})
	if res.Err != nil {
		return 0, res.Err
	}
	return res.Value.(int), nil
}

func (ds *Datastore) removeSync(filter value.Value, opts RemoveOptions) (int, error) {
	candidates := ds.getCandidates(filter, false)
	matched := make([]value.Value, 0, len(candidates))
	for _, c := range candidates {
		ok, err := query.Match(c, filter, ds.cfg.CompareStrings)
		if err != nil {
			return 0, err
		}
		if ok {
			matched = append(matched, c)
			if !opts.Multi {
				break
			}
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := ds.removeDocsSync(matched); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// removeDocsSync removes docs from every index and appends one
// tombstone per removed _id, used by both Remove and TTL eviction. On
// a persistence failure it re-inserts the documents so the in-memory
// indexes stay consistent with what's actually on disk (§9's resolution
// of the write-failure rollback question).
func (ds *Datastore) removeDocsSync(docs []value.Value) error {
	for _, idx := range ds.indexes {
		idx.Remove(docs...)
	}

	tombstones := make([]value.Value, len(docs))
	for i, d := range docs {
		id, _ := serialize.DocID(d)
		tombstones[i] = serialize.NewTombstone(id)
	}

	if err := ds.persist.PersistNewState(tombstones); err != nil {
		for _, idx := range ds.indexes {
			_ = idx.Insert(docs...)
		}
		return err
	}

	ds.metrics.RemovesTotal.Add(float64(len(docs)))
	ds.metrics.DocumentCount.Set(float64(ds.indexes["_id"].Len()))
	return nil
}
