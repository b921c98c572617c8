package value

// Equal implements areThingsEqual from §4.1: structural for objects and
// arrays, millis-equal for dates, and Undefined is never equal to
// anything — including another Undefined — when used for document
// matching (callers that need "both sides are the same Go zero value"
// semantics should compare Kind()s directly instead).
func Equal(a, b Value) bool {
	if a.kind == Undefined || b.kind == Undefined {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.n == b.n
	case String:
		return a.s == b.s
	case Date:
		return a.date == b.date
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.keys {
			if !b.obj.Has(k) || !Equal(a.obj.Get(k), b.obj.Get(k)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
