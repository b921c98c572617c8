package nedb

import (
	"github.com/SReject/nedb/internal/index"
	"github.com/SReject/nedb/internal/value"
)

// getCandidates implements the candidate-selection algorithm of §4.8: a
// point lookup on an indexed primitive field, else a disjunctive $in
// lookup, else a range lookup on $lt/$lte/$gt/$gte, else a full scan —
// followed by a TTL eviction pass unless evictTTL is false. Remove skips
// the eviction pass: removing a document accomplishes the same end
// state a TTL eviction would, so running both would just remove twice.
func (ds *Datastore) getCandidates(filter value.Value, evictTTL bool) []value.Value {
	candidates := ds.selectCandidates(filter)
	if !evictTTL {
		return candidates
	}
	return ds.evictExpired(candidates)
}

func (ds *Datastore) selectCandidates(filter value.Value) []value.Value {
	if filter.Kind() != value.Object {
		return ds.allDocs()
	}

	for _, key := range filter.Obj().Keys() {
		v := filter.Obj().Get(key)
		if v.IsPrimitive() {
			if idx, ok := ds.indexes[key]; ok {
				return idx.GetMatching(v)
			}
		}
	}

	for _, key := range filter.Obj().Keys() {
		v := filter.Obj().Get(key)
		if v.Kind() != value.Object {
			continue
		}
		if in := v.Obj().Get("$in"); in.Kind() == value.Array {
			if idx, ok := ds.indexes[key]; ok {
				return idx.GetMatching(in.Items()...)
			}
		}
	}

	for _, key := range filter.Obj().Keys() {
		v := filter.Obj().Get(key)
		if v.Kind() == value.Object && isRangeQuery(v) {
			if idx, ok := ds.indexes[key]; ok {
				return idx.GetBetweenBounds(v)
			}
		}
	}

	return ds.allDocs()
}

func isRangeQuery(v value.Value) bool {
	for _, op := range [...]string{"$lt", "$lte", "$gt", "$gte"} {
		if !v.Obj().Get(op).IsUndefined() {
			return true
		}
	}
	return false
}

// evictExpired removes (via the standard remove path, so tombstones are
// appended and metrics updated) any candidate whose TTL-indexed field is
// a date older than now minus that index's expireAfterSeconds, and
// returns the survivors.
func (ds *Datastore) evictExpired(candidates []value.Value) []value.Value {
	var ttlIndexes []*index.Index
	for _, name := range ds.indexOrder {
		if ds.indexes[name].ExpireAfterSeconds() != nil {
			ttlIndexes = append(ttlIndexes, ds.indexes[name])
		}
	}
	if len(ttlIndexes) == 0 {
		return candidates
	}

	now := ds.now()
	out := make([]value.Value, 0, len(candidates))
	var expired []value.Value
	for _, doc := range candidates {
		isExpired := false
		for _, idx := range ttlIndexes {
			fieldVal := value.Get(doc, idx.FieldName())
			if fieldVal.Kind() != value.Date {
				continue
			}
			if now > fieldVal.Millis()+(*idx.ExpireAfterSeconds())*1000 {
				isExpired = true
				break
			}
		}
		if isExpired {
			expired = append(expired, doc)
			continue
		}
		out = append(out, doc)
	}
	if len(expired) > 0 {
		_ = ds.removeDocsSync(expired)
		ds.metrics.TTLEvictedTotal.Add(float64(len(expired)))
	}
	return out
}
