package nedb

import (
	"sort"

	"github.com/SReject/nedb/internal/query"
	"github.com/SReject/nedb/internal/value"
)

// SortField is one key of a Cursor's sort order; Direction is +1
// (ascending) or -1 (descending).
type SortField struct {
	Field     string
	Direction int
}

// Cursor builds up a deferred find: filter, then optional sort, skip,
// limit and projection, executed only on Exec (§4.8.4).
type Cursor struct {
	ds         *Datastore
	filter     value.Value
	hasLimit   bool
	limitN     int
	skipN      int
	sortSpec   []SortField
	projection value.Value
}

// Find starts a Cursor over every document matching filter.
func (ds *Datastore) Find(filter value.Value) *Cursor {
	return &Cursor{ds: ds, filter: filter}
}

func (c *Cursor) Limit(n int) *Cursor { c.limitN = n; c.hasLimit = true; return c }
func (c *Cursor) Skip(n int) *Cursor  { c.skipN = n; return c }
func (c *Cursor) Sort(spec ...SortField) *Cursor {
	c.sortSpec = spec
	return c
}
func (c *Cursor) Projection(p value.Value) *Cursor { c.projection = p; return c }

// Exec runs the cursor and returns the resulting (projected) documents.
func (c *Cursor) Exec() ([]value.Value, error) {
	res := <-c.ds.exec.Push(false, func() (interface{}, error) {
		return c.execSync()
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value.([]value.Value), nil
}

func (c *Cursor) execSync() ([]value.Value, error) {
	candidates := c.ds.getCandidates(c.filter, true)

	var matched []value.Value
	if len(c.sortSpec) == 0 {
		// No sort: apply skip/limit as matches accumulate rather than
		// collecting everything first.
		skipped := 0
		for _, cand := range candidates {
			ok, err := query.Match(cand, c.filter, c.ds.cfg.CompareStrings)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if skipped < c.skipN {
				skipped++
				continue
			}
			matched = append(matched, cand)
			if c.hasLimit && len(matched) >= c.limitN {
				break
			}
		}
	} else {
		for _, cand := range candidates {
			ok, err := query.Match(cand, c.filter, c.ds.cfg.CompareStrings)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = append(matched, cand)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool {
			for _, sf := range c.sortSpec {
				a := value.Get(matched[i], sf.Field)
				b := value.Get(matched[j], sf.Field)
				cmp := value.Compare(a, b, c.ds.cfg.CompareStrings) * sf.Direction
				if cmp != 0 {
					return cmp < 0
				}
			}
			return false
		})
		matched = skipLimit(matched, c.skipN, c.hasLimit, c.limitN)
	}

	c.ds.metrics.FindsTotal.Inc()

	out := make([]value.Value, len(matched))
	for i, d := range matched {
		if c.projection.IsUndefined() {
			out[i] = value.Clone(d, false)
			continue
		}
		projected, err := query.Project(d, c.projection)
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}

func skipLimit(docs []value.Value, skip int, hasLimit bool, limit int) []value.Value {
	if skip > len(docs) {
		skip = len(docs)
	}
	docs = docs[skip:]
	if hasLimit && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// FindOne returns the first document matching filter (optionally
// projected), or an Undefined value when nothing matches.
func (ds *Datastore) FindOne(filter, projection value.Value) (value.Value, error) {
	c := ds.Find(filter).Limit(1)
	if !projection.IsUndefined() {
		c = c.Projection(projection)
	}
	docs, err := c.Exec()
	if err != nil {
		return value.Value{}, err
	}
	if len(docs) == 0 {
		return value.Undef(), nil
	}
	return docs[0], nil
}

// Count returns the number of documents matching filter.
func (ds *Datastore) Count(filter value.Value) (int, error) {
	docs, err := ds.Find(filter).Exec()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
