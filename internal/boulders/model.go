// Package boulders models climbing problems and provides the per-gym catalog
// service: lookups, random selection, filtered listing, creation and update.
package boulders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimeLayout is the wire format of creation timestamps, an ISO timestamp
// without zone, as written by the catalog clients.
const TimeLayout = "2006-01-02T15:04:05.999999"

// Hold is one marked hold on a wall photograph, with normalized coordinates.
type Hold struct {
	Color string  `bson:"color" json:"color"`
	X     float64 `bson:"x" json:"x"`
	Y     float64 `bson:"y" json:"y"`
}

// Boulder is a single climbing problem. The identity is assigned by storage on
// creation and is immutable. Repetitions is absent in records predating the
// counter and decodes to zero.
type Boulder struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Section     string             `bson:"section" json:"section"`
	Creator     string             `bson:"creator" json:"creator"`
	Difficulty  Grade              `bson:"difficulty" json:"difficulty"`
	Feet        string             `bson:"feet,omitempty" json:"feet,omitempty"`
	Rating      float64            `bson:"rating" json:"rating"`
	Raters      int                `bson:"raters" json:"raters"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Holds       []Hold             `bson:"holds,omitempty" json:"holds,omitempty"`
	Time        string             `bson:"time" json:"time"`
	Repetitions int                `bson:"repetitions,omitempty" json:"repetitions"`
}

// CreatedAt parses the creation timestamp. Records with unparseable or missing
// timestamps report the zero time.
func (b Boulder) CreatedAt() time.Time {
	trimmed := strings.TrimSpace(b.Time)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Items is the fixed list envelope every collection read returns.
type Items struct {
	Items []Boulder `json:"items"`
}

// SortKey names one of the recognized traversal orderings.
type SortKey string

const (
	SortByCreation    SortKey = "creation_date"
	SortByDifficulty  SortKey = "difficulty"
	SortBySection     SortKey = "section"
	SortByRating      SortKey = "rating"
	SortByRepetitions SortKey = "repetitions"
)

// ErrUnknownSortKey indicates a sort key outside the recognized enumeration.
var ErrUnknownSortKey = errors.New("boulders: unknown sort key")

// ParseSortKey validates a client-supplied sort key name.
func ParseSortKey(value string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(value))) {
	case SortByCreation:
		return SortByCreation, nil
	case SortByDifficulty:
		return SortByDifficulty, nil
	case SortBySection:
		return SortBySection, nil
	case SortByRating:
		return SortByRating, nil
	case SortByRepetitions:
		return SortByRepetitions, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, value)
	}
}

// Field maps the sort key to the stored field it orders by. Creation order is
// the storage identity, whose generation embeds the insertion timestamp.
func (k SortKey) Field() string {
	if k == SortByCreation {
		return "_id"
	}
	return string(k)
}
