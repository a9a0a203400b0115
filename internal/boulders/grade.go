package boulders

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Grade is the categorical difficulty of a problem. Storage holds the internal
// integer code; the public vocabulary is the hold-color name. Both mapping
// directions are total over the enumeration.
type Grade int

const (
	GradeGreen Grade = iota
	GradeBlue
	GradeYellow
	GradeRed
)

// ErrUnknownGrade indicates a vocabulary word outside the grade enumeration.
var ErrUnknownGrade = errors.New("boulders: unknown grade")

var gradeNames = [...]string{"green", "blue", "yellow", "red"}

// ParseGrade maps the external color vocabulary to a Grade. It also accepts a
// bare numeric code so that already-normalized data round-trips unchanged.
func ParseGrade(value string) (Grade, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for code, name := range gradeNames {
		if name == normalized {
			return Grade(code), nil
		}
	}
	if code, err := strconv.Atoi(normalized); err == nil {
		if code >= 0 && code < len(gradeNames) {
			return Grade(code), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGrade, value)
}

// String returns the external vocabulary word for the grade.
func (g Grade) String() string {
	if g < 0 || int(g) >= len(gradeNames) {
		return fmt.Sprintf("grade(%d)", int(g))
	}
	return gradeNames[g]
}

// Ordinal exposes the internal code, used as the comparable sort key for
// user-list ordering.
func (g Grade) Ordinal() int {
	return int(g)
}

// MarshalJSON writes the external vocabulary word.
func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON accepts either the vocabulary word or the numeric code.
func (g *Grade) UnmarshalJSON(data []byte) error {
	var word string
	if err := json.Unmarshal(data, &word); err == nil {
		parsed, err := ParseGrade(word)
		if err != nil {
			return err
		}
		*g = parsed
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownGrade, string(data))
	}
	*g = Grade(code)
	return nil
}

// MarshalBSONValue stores the internal code.
func (g Grade) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(int32(g))
}

// UnmarshalBSONValue accepts the stored code in any numeric width, plus the
// vocabulary word for documents written before codes were introduced.
func (g *Grade) UnmarshalBSONValue(valueType bsontype.Type, data []byte) error {
	rawValue := bson.RawValue{Type: valueType, Value: data}
	switch valueType {
	case bsontype.Int32:
		*g = Grade(rawValue.Int32())
	case bsontype.Int64:
		*g = Grade(rawValue.Int64())
	case bsontype.Double:
		*g = Grade(int(rawValue.Double()))
	case bsontype.String:
		parsed, err := ParseGrade(rawValue.StringValue())
		if err != nil {
			return err
		}
		*g = parsed
	case bsontype.Null, bsontype.Undefined:
		*g = GradeGreen
	default:
		return fmt.Errorf("%w: bson type %s", ErrUnknownGrade, valueType)
	}
	return nil
}
