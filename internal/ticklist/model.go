// Package ticklist maintains each user's personal list of problems: thin
// entries annotated with completion status and climb-date history.
package ticklist

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// DateLayout is the calendar-date format of climb history entries. No time
// component is recorded.
const DateLayout = "2006-01-02"

// ClimbDates is the climb-date history of one entry. The stored shape evolved
// from a single date string to an append-only list; decoding accepts both and
// always normalizes to the list form. Order is climb chronology and same-day
// repeats are kept on purpose.
type ClimbDates []string

// MarshalBSONValue always writes the current list shape.
func (d ClimbDates) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue([]string(d))
}

// UnmarshalBSONValue accepts the legacy single-string shape alongside the
// list shape.
func (d *ClimbDates) UnmarshalBSONValue(valueType bsontype.Type, data []byte) error {
	rawValue := bson.RawValue{Type: valueType, Value: data}
	switch valueType {
	case bsontype.String:
		*d = ClimbDates{rawValue.StringValue()}
	case bsontype.Array:
		values, err := rawValue.Array().Values()
		if err != nil {
			return fmt.Errorf("ticklist: decode climb dates: %w", err)
		}
		dates := make(ClimbDates, 0, len(values))
		for _, value := range values {
			if value.Type == bsontype.String {
				dates = append(dates, value.StringValue())
			}
		}
		*d = dates
	case bsontype.Null, bsontype.Undefined:
		*d = nil
	default:
		return fmt.Errorf("ticklist: unexpected climb date shape %s", valueType)
	}
	return nil
}

// Append records one more climbed date. Duplicates are intentional: every
// mark-as-done adds an entry, which is how repetitions are counted.
func (d ClimbDates) Append(at time.Time) ClimbDates {
	return append(d, at.Format(DateLayout))
}

// Entry is one per-user record of interest in a boulder. Iden is the string
// form of the boulder's storage identity; Gym names the collection the full
// record lives in. At most one entry exists per (user, boulder) pair.
type Entry struct {
	Iden        string     `bson:"iden" json:"iden"`
	Gym         string     `bson:"gym" json:"gym"`
	IsDone      bool       `bson:"is_done" json:"is_done"`
	DateClimbed ClimbDates `bson:"date_climbed,omitempty" json:"date_climbed,omitempty"`
}
