package query

import "errors"

var (
	ErrMixedOperatorsAndLiterals = errors.New("query: cannot mix operator keys and literal keys in one field query")
	ErrUnknownOperator           = errors.New("query: unknown comparison operator")
	ErrUnknownLogicalOperator    = errors.New("query: unknown logical operator")
	ErrWhereNonBoolean           = errors.New("query: $where predicate must return a boolean")
	ErrInExpectsArray            = errors.New("query: $in/$nin expects an array")
	ErrElemMatchExpectsArray     = errors.New("query: $elemMatch applied to a non-array field")
	ErrSizeExpectsArray          = errors.New("query: $size applied to a non-array field")
	ErrRegexExpectsString        = errors.New("query: $regex pattern must be a string")

	ErrMixedModifiersAndLiterals = errors.New("update: cannot mix modifier keys and literal keys")
	ErrUnknownModifier           = errors.New("update: unknown modifier")
	ErrIncOnNonNumber            = errors.New("update: $inc target is not a number")
	ErrMinMaxOnIncomparable      = errors.New("update: $min/$max target is not comparable")
	ErrPushOnNonArray            = errors.New("update: $push target is not an array")
	ErrAddToSetOnNonArray        = errors.New("update: $addToSet target is not an array")
	ErrPopOnNonArray             = errors.New("update: $pop target is not an array")
	ErrPullOnNonArray            = errors.New("update: $pull target is not an array")
	ErrIDImmutable               = errors.New("update: _id cannot be changed")

	ErrMixedProjection = errors.New("projection: cannot mix inclusion and exclusion (besides _id)")
)
