package value

import "sort"

// precedence gives each Kind its rank in the total ordering from §4.1:
// undefined < null < numbers < strings < booleans < dates < arrays < objects.
func precedence(k Kind) int {
	switch k {
	case Undefined:
		return 0
	case Null:
		return 1
	case Number:
		return 2
	case String:
		return 3
	case Bool:
		return 4
	case Date:
		return 5
	case Array:
		return 6
	case Object:
		return 7
	default:
		return 0
	}
}

// StringCompare is the default code-unit lexicographic string comparator.
// Callers may supply their own via Compare's strCmp parameter to match
// §4.1's "callers may supply a custom string comparator".
func StringCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Compare implements the total ordering of §4.1. strCmp, if non-nil,
// overrides the default lexicographic string comparator. Numeric NaN is
// never ordered relative to anything including itself: comparisons
// involving NaN return 0 (incomparable), matching the "treat as
// incomparable for $lt/$lte/$gt/$gte" rule; callers that need strict NaN
// detection should check for it explicitly before calling Compare.
func Compare(a, b Value, strCmp func(a, b string) int) int {
	if strCmp == nil {
		strCmp = StringCompare
	}

	pa, pb := precedence(a.kind), precedence(b.kind)
	if pa != pb {
		if pa < pb {
			return -1
		}
		return 1
	}

	switch a.kind {
	case Undefined, Null:
		return 0
	case Number:
		return compareFloat(a.n, b.n)
	case String:
		return strCmp(a.s, b.s)
	case Bool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case Date:
		switch {
		case a.date < b.date:
			return -1
		case a.date > b.date:
			return 1
		default:
			return 0
		}
	case Array:
		return compareArrays(a.arr, b.arr, strCmp)
	case Object:
		return compareObjects(a.obj, b.obj, strCmp)
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	if isNaN(a) || isNaN(b) {
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isNaN(f float64) bool { return f != f }

// compareArrays is recursive and lexicographic; a shorter array that is a
// prefix of a longer one is smaller.
func compareArrays(a, b []Value, strCmp func(a, b string) int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i], strCmp); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareObjects compares by sorted key lists positionally, then by length,
// per §4.1.
func compareObjects(a, b *Obj, strCmp func(a, b string) int) int {
	ak := sortedKeys(a)
	bk := sortedKeys(b)
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if c := strCmp(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a.Get(ak[i]), b.Get(bk[i]), strCmp); c != 0 {
			return c
		}
	}
	switch {
	case len(ak) < len(bk):
		return -1
	case len(ak) > len(bk):
		return 1
	default:
		return 0
	}
}

func sortedKeys(o *Obj) []string {
	if o == nil {
		return nil
	}
	keys := append([]string(nil), o.keys...)
	sort.Strings(keys)
	return keys
}
