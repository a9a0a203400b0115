// Package walls models gyms and their photographed wall sections, and resolves
// the set of sections that belong to a gym's currently active wall
// configuration.
package walls

import "go.mongodb.org/mongo-driver/bson/primitive"

// Gym identifies a climbing gym. Code is the short path-style identifier used
// to derive per-gym collection names.
type Gym struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Code        string             `bson:"id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Coordinates []float64          `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Section is one photographed physical area within a gym. Latest marks
// membership in the gym's currently active wall configuration; several
// sections can be latest at once.
type Section struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Image  string             `bson:"image" json:"image"`
	Name   string             `bson:"name" json:"name"`
	Radius float64            `bson:"radius" json:"radius"`
	Latest bool               `bson:"latest" json:"latest"`
}

// Scope is the outcome of resolving a gym's wall set. Unconstrained means "no
// wall filtering requested"; it is distinct from an empty section set, which
// means "nothing matches".
type Scope struct {
	Unconstrained bool
	Sections      []string
}

// Contains reports whether a section identifier falls inside the scope.
func (s Scope) Contains(section string) bool {
	if s.Unconstrained {
		return true
	}
	for _, candidate := range s.Sections {
		if candidate == section {
			return true
		}
	}
	return false
}
