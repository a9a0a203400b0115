// Package query accumulates filter conditions into a single compound predicate
// in the document-store dialect. All added constraints are conjoined; the
// builder performs no field validation, so unknown fields simply never match.
package query

import "go.mongodb.org/mongo-driver/bson"

// Builder collects conditions. The zero predicate matches every document.
type Builder struct {
	conditions bson.M
}

// NewBuilder returns an empty predicate builder.
func NewBuilder() *Builder {
	return &Builder{conditions: bson.M{}}
}

// Equal constrains field to exactly value.
func (b *Builder) Equal(field string, value any) *Builder {
	b.conditions[field] = value
	return b
}

// AtLeast constrains field to values >= value. Combined with AtMost on the
// same field it forms an inclusive interval.
func (b *Builder) AtLeast(field string, value any) *Builder {
	b.operator(field, "$gte", value)
	return b
}

// AtMost constrains field to values <= value.
func (b *Builder) AtMost(field string, value any) *Builder {
	b.operator(field, "$lte", value)
	return b
}

// Around constrains an integer-valued field to target with a half-unit
// tolerance on either side, i.e. an exact-integer match expressed as a range.
func (b *Builder) Around(field string, target int) *Builder {
	b.AtLeast(field, float64(target)-0.5)
	b.AtMost(field, float64(target)+0.5)
	return b
}

// ContainsText constrains field to values containing value, case-insensitive.
func (b *Builder) ContainsText(field, value string) *Builder {
	b.conditions[field] = bson.M{"$regex": value, "$options": "i"}
	return b
}

// MemberOf constrains field to one of the given values. An empty set matches
// nothing, which is how callers express "constrain to an empty scope".
func (b *Builder) MemberOf(field string, values []string) *Builder {
	if values == nil {
		values = []string{}
	}
	b.conditions[field] = bson.M{"$in": values}
	return b
}

// Predicate returns the accumulated compound filter. The result is stable
// across repeated calls.
func (b *Builder) Predicate() bson.M {
	return b.conditions
}

func (b *Builder) operator(field, op string, value any) {
	existing, ok := b.conditions[field].(bson.M)
	if !ok {
		existing = bson.M{}
		b.conditions[field] = existing
	}
	existing[op] = value
}
