package query

import "github.com/SReject/nedb/internal/value"

// Project implements project(doc, projection) -> projectedDoc from §4.3.
// projection keys map to 1/truthy (inclusion) or 0/falsy (exclusion); the
// two modes cannot mix except for _id, whose inclusion is independently
// controlled and defaults to included.
func Project(doc, projection value.Value) (value.Value, error) {
	if projection.Kind() != value.Object || projection.Obj().Len() == 0 {
		return value.Clone(doc, false), nil
	}

	mode, idFlag, hasID, err := scanProjection(projection)
	if err != nil {
		return value.Value{}, err
	}

	var out value.Value
	switch mode {
	case projectInclude:
		out = projectPick(doc, projection)
	case projectExclude:
		out = projectOmit(doc, projection)
	default:
		// Only _id was specified: start from the full document.
		out = value.Clone(doc, false)
	}

	switch {
	case hasID && truthy(idFlag):
		if doc.Obj().Has("_id") {
			out.Obj().Set("_id", value.Clone(doc.Obj().Get("_id"), false))
		}
	case hasID:
		out.Obj().Delete("_id")
	case mode == projectInclude && doc.Obj().Has("_id"):
		// _id defaults to included even in inclusion mode, unless the
		// caller explicitly excluded it above.
		out.Obj().Set("_id", value.Clone(doc.Obj().Get("_id"), false))
	}
	return out, nil
}

type projectionMode int

const (
	projectNone projectionMode = iota
	projectInclude
	projectExclude
)

// scanProjection classifies the non-_id keys as uniformly inclusion or
// exclusion, and separately reports _id's own flag if given.
func scanProjection(projection value.Value) (mode projectionMode, idFlag value.Value, hasID bool, err error) {
	mode = projectNone
	for _, key := range projection.Obj().Keys() {
		flag := projection.Obj().Get(key)
		if key == "_id" {
			idFlag = flag
			hasID = true
			continue
		}
		var keyMode projectionMode
		if truthy(flag) {
			keyMode = projectInclude
		} else {
			keyMode = projectExclude
		}
		switch mode {
		case projectNone:
			mode = keyMode
		default:
			if mode != keyMode {
				return projectNone, value.Value{}, false, ErrMixedProjection
			}
		}
	}
	return mode, idFlag, hasID, nil
}

func projectPick(doc, projection value.Value) value.Value {
	out := value.ObjVal(value.NewObj())
	for _, key := range projection.Obj().Keys() {
		if key == "_id" {
			continue
		}
		if !truthy(projection.Obj().Get(key)) {
			continue
		}
		if v := value.Get(doc, key); !v.IsUndefined() {
			value.Set(out, key, value.Clone(v, false))
		}
	}
	return out
}

func projectOmit(doc, projection value.Value) value.Value {
	out := value.Clone(doc, false)
	for _, key := range projection.Obj().Keys() {
		if key == "_id" {
			continue
		}
		if truthy(projection.Obj().Get(key)) {
			continue
		}
		value.Unset(out, key)
	}
	return out
}
