// Package index implements the ordered-key to document-set structure of
// §4.4: a self-balancing tree keyed on a document field's projected value,
// with unique/sparse/TTL flags, array-element fan-out and all-or-nothing
// rollback on insert/update failure.
//
// The ordered container is github.com/tidwall/btree's generic BTreeG,
// the same real balanced tree the reference corpus reaches for when it
// needs an ordered secondary index over heterogeneous keys, rather than a
// hand-rolled AVL implementation.
package index

import (
	"github.com/tidwall/btree"

	"github.com/SReject/nedb/internal/value"
)

// Options configures an Index, mirroring ensureIndex's parameters.
type Options struct {
	FieldName          string
	Unique             bool
	Sparse             bool
	ExpireAfterSeconds *int64

	// StrCmp overrides the default byte-wise string ordering used when
	// comparing keys (and, by extension, document fields of this index);
	// nil means use value.Compare's default.
	StrCmp func(a, b string) int
}

// entry is one node of the tree: the projected key value and the set of
// documents sharing it, kept both as an ordered id slice (insertion order,
// for deterministic traversal) and an id->doc map (for O(1) membership).
type entry struct {
	key  value.Value
	ids  []string
	docs map[string]value.Value
}

// Index is one secondary (or the mandatory _id) index over a collection.
type Index struct {
	opts Options
	tree *btree.BTreeG[entry]
}

// New constructs an empty index per opts.
func New(opts Options) *Index {
	idx := &Index{opts: opts}
	idx.tree = btree.NewBTreeG[entry](func(a, b entry) bool {
		return value.Compare(a.key, b.key, opts.StrCmp) < 0
	})
	return idx
}

func (idx *Index) FieldName() string            { return idx.opts.FieldName }
func (idx *Index) Unique() bool                 { return idx.opts.Unique }
func (idx *Index) Sparse() bool                 { return idx.opts.Sparse }
func (idx *Index) ExpireAfterSeconds() *int64   { return idx.opts.ExpireAfterSeconds }

// docID reads the string _id off a document; the datastore guarantees
// every document passed here already carries one.
func docID(doc value.Value) string {
	return doc.Obj().Get("_id").Text()
}

// projectKeys returns the distinct keys doc contributes to this index:
// one element per distinct array element when the projected value is an
// array (deduplicated via value.Equal, which is kind-aware and so never
// collides a number with a string or bool the way an untyped projection
// would), the bare projected value otherwise, or nothing at all when the
// index is sparse and the projection is Undefined.
func (idx *Index) projectKeys(doc value.Value) []value.Value {
	projected := value.Get(doc, idx.opts.FieldName)

	if projected.Kind() == value.Array {
		items := projected.Items()
		out := make([]value.Value, 0, len(items))
		for _, item := range items {
			if !containsKey(out, item) {
				out = append(out, item)
			}
		}
		return out
	}

	if projected.IsUndefined() && idx.opts.Sparse {
		return nil
	}
	return []value.Value{projected}
}

func containsKey(keys []value.Value, k value.Value) bool {
	for _, existing := range keys {
		if value.Equal(existing, k) {
			return true
		}
	}
	return false
}

// docKeys records which keys a single document ended up inserted under,
// so a later rollback can remove exactly those.
type docKeys struct {
	id   string
	keys []value.Value
}

// Insert adds one or more documents, all-or-nothing: if any document's
// insertion fails (a unique violation on any of its keys), every
// document inserted earlier in the call is rolled back.
func (idx *Index) Insert(docs ...value.Value) error {
	applied := make([]docKeys, 0, len(docs))
	for _, doc := range docs {
		keys, err := idx.insertDoc(doc)
		if err != nil {
			idx.rollback(applied)
			return err
		}
		applied = append(applied, keys)
	}
	return nil
}

// insertDoc inserts doc under every key it projects to, rolling back its
// own partial (array-fanned) insertion if a later key fails.
func (idx *Index) insertDoc(doc value.Value) (docKeys, error) {
	id := docID(doc)
	keys := idx.projectKeys(doc)
	inserted := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		if err := idx.insertKey(k, id, doc); err != nil {
			idx.removeKeys(id, inserted)
			return docKeys{}, err
		}
		inserted = append(inserted, k)
	}
	return docKeys{id: id, keys: keys}, nil
}

func (idx *Index) insertKey(k value.Value, id string, doc value.Value) error {
	e, ok := idx.tree.Get(entry{key: k})
	if !ok {
		e = entry{key: k, docs: make(map[string]value.Value)}
	}
	if _, exists := e.docs[id]; !exists {
		if idx.opts.Unique && len(e.docs) > 0 {
			return ErrUniqueViolation
		}
		e.ids = append(e.ids, id)
	}
	e.docs[id] = doc
	idx.tree.Set(e)
	return nil
}

func (idx *Index) removeKeys(id string, keys []value.Value) {
	for _, k := range keys {
		e, ok := idx.tree.Get(entry{key: k})
		if !ok {
			continue
		}
		if _, exists := e.docs[id]; !exists {
			continue
		}
		delete(e.docs, id)
		for i, existingID := range e.ids {
			if existingID == id {
				e.ids = append(e.ids[:i], e.ids[i+1:]...)
				break
			}
		}
		if len(e.docs) == 0 {
			idx.tree.Delete(e)
		} else {
			idx.tree.Set(e)
		}
	}
}

func (idx *Index) rollback(applied []docKeys) {
	for _, a := range applied {
		idx.removeKeys(a.id, a.keys)
	}
}

// Remove drops one or more documents from every key they are indexed
// under. Removing a document that isn't present is a no-op.
func (idx *Index) Remove(docs ...value.Value) {
	for _, doc := range docs {
		idx.removeKeys(docID(doc), idx.projectKeys(doc))
	}
}

// Update replaces oldDoc with newDoc: remove then insert, reverting to
// oldDoc if the insert fails.
func (idx *Index) Update(oldDoc, newDoc value.Value) error {
	idx.Remove(oldDoc)
	if err := idx.Insert(newDoc); err != nil {
		_ = idx.Insert(oldDoc)
		return err
	}
	return nil
}

// Pair is one (old, new) document pair for UpdateMultiple.
type Pair struct {
	Old, New value.Value
}

// UpdateMultiple performs a bulk remove of every Old followed by a bulk
// insert of every New, rolling every pair back to Old if any insert
// fails.
func (idx *Index) UpdateMultiple(pairs []Pair) error {
	for _, p := range pairs {
		idx.Remove(p.Old)
	}

	applied := make([]docKeys, 0, len(pairs))
	for _, p := range pairs {
		keys, err := idx.insertDoc(p.New)
		if err != nil {
			idx.rollback(applied)
			for _, reverted := range pairs {
				_ = idx.Insert(reverted.Old)
			}
			return err
		}
		applied = append(applied, keys)
	}
	return nil
}

// GetMatching returns the union (deduplicated by _id) of documents keyed
// under any of keys: a point lookup for one key, a disjunctive lookup
// for several (as used for $in).
func (idx *Index) GetMatching(keys ...value.Value) []value.Value {
	seen := make(map[string]bool)
	var out []value.Value
	for _, k := range keys {
		e, ok := idx.tree.Get(entry{key: k})
		if !ok {
			continue
		}
		for _, id := range e.ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, e.docs[id])
		}
	}
	return out
}

// GetBetweenBounds returns every document whose key falls within the
// range described by query's $lt/$lte/$gt/$gte keys (any subset, any
// combination).
func (idx *Index) GetBetweenBounds(query value.Value) []value.Value {
	lower, hasLower, lowerInclusive := rangeBound(query, "$gte", "$gt")
	upper, hasUpper, upperInclusive := rangeBound(query, "$lte", "$lt")

	start := entry{key: value.Undef()}
	if hasLower {
		start.key = lower
	}

	var out []value.Value
	idx.tree.Ascend(start, func(e entry) bool {
		if hasLower {
			c := value.Compare(e.key, lower, idx.opts.StrCmp)
			if c < 0 || (c == 0 && !lowerInclusive) {
				return true
			}
		}
		if hasUpper {
			c := value.Compare(e.key, upper, idx.opts.StrCmp)
			if c > 0 || (c == 0 && !upperInclusive) {
				return false
			}
		}
		for _, id := range e.ids {
			out = append(out, e.docs[id])
		}
		return true
	})
	return out
}

// rangeBound reads whichever of the inclusive/exclusive operator pair is
// present in query (preferring the inclusive form if, oddly, both are
// given).
func rangeBound(query value.Value, inclusiveOp, exclusiveOp string) (bound value.Value, has, inclusive bool) {
	if query.Kind() != value.Object {
		return value.Value{}, false, false
	}
	if v := query.Obj().Get(inclusiveOp); !v.IsUndefined() {
		return v, true, true
	}
	if v := query.Obj().Get(exclusiveOp); !v.IsUndefined() {
		return v, true, false
	}
	return value.Value{}, false, false
}

// GetAll returns every indexed document in ascending key order.
func (idx *Index) GetAll() []value.Value {
	var out []value.Value
	idx.tree.Ascend(entry{key: value.Undef()}, func(e entry) bool {
		for _, id := range e.ids {
			out = append(out, e.docs[id])
		}
		return true
	})
	return out
}

// Len returns the number of documents indexed (counting a
// multiply-keyed array document once).
func (idx *Index) Len() int {
	seen := make(map[string]bool)
	idx.tree.Ascend(entry{key: value.Undef()}, func(e entry) bool {
		for _, id := range e.ids {
			seen[id] = true
		}
		return true
	})
	return len(seen)
}
