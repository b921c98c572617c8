package value

import "strings"

// Clone deep-copies v. In strict mode, object keys beginning with '$' or
// containing '.' are dropped from the copy — used when materializing an
// upsert base from a query and when handing cached documents back to
// callers so external mutation can never reach indexed state.
func Clone(v Value, strict bool) Value {
	switch v.kind {
	case Array:
		out := make([]Value, len(v.arr))
		for i, item := range v.arr {
			out[i] = Clone(item, strict)
		}
		return Value{kind: Array, arr: out}
	case Object:
		out := NewObj()
		for _, k := range v.obj.keys {
			if strict && isStrictDropped(k) {
				continue
			}
			out.Set(k, Clone(v.obj.Get(k), strict))
		}
		return Value{kind: Object, obj: out}
	default:
		return v
	}
}

func isStrictDropped(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".")
}
