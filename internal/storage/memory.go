package storage

import (
	"context"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDatabase is an in-process Database that evaluates the same filter
// dialect the Mongo backend does ($in, $gte, $lte, $regex, $set). It keeps
// documents in insertion order, which mirrors the creation-order semantics of
// ObjectID-keyed collections.
type MemoryDatabase struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
}

// NewMemoryDatabase returns an empty in-memory document store.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string][]bson.M)}
}

func (d *MemoryDatabase) Collection(name string) Collection {
	return &memoryCollection{db: d, name: name}
}

type memoryCollection struct {
	db   *MemoryDatabase
	name string
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, sortFields ...SortField) ([]bson.Raw, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	var matched []bson.M
	for _, doc := range c.db.collections[c.name] {
		if matchesFilter(doc, filter) {
			matched = append(matched, doc)
		}
	}
	sortDocuments(matched, sortFields)

	results := make([]bson.Raw, 0, len(matched))
	for _, doc := range matched {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, raw)
	}
	return results, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M, projection ...string) (bson.Raw, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	for _, doc := range c.db.collections[c.name] {
		if !matchesFilter(doc, filter) {
			continue
		}
		if len(projection) > 0 {
			doc = projectFields(doc, projection)
		}
		return bson.Marshal(doc)
	}
	return nil, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, document any) (primitive.ObjectID, error) {
	doc, err := toDocument(document)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.collections[c.name] = append(c.db.collections[c.name], doc)
	return id, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	for _, doc := range c.db.collections[c.name] {
		if !matchesFilter(doc, filter) {
			continue
		}
		if set, ok := update["$set"]; ok {
			fields, err := toDocument(set)
			if err != nil {
				return 0, err
			}
			for key, value := range fields {
				if key == "_id" {
					continue
				}
				doc[key] = value
			}
		}
		return 1, nil
	}
	return 0, nil
}

func (c *memoryCollection) SampleOne(ctx context.Context) (bson.Raw, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	docs := c.db.collections[c.name]
	if len(docs) == 0 {
		return nil, nil
	}
	return bson.Marshal(docs[rand.Intn(len(docs))])
}

// toDocument round-trips any value through bson to get a plain bson.M.
func toDocument(value any) (bson.M, error) {
	if doc, ok := value.(bson.M); ok {
		return cloneDocument(doc), nil
	}
	raw, err := bson.Marshal(value)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func cloneDocument(doc bson.M) bson.M {
	clone := make(bson.M, len(doc))
	for key, value := range doc {
		clone[key] = value
	}
	return clone
}

func projectFields(doc bson.M, fields []string) bson.M {
	projected := bson.M{}
	if id, ok := doc["_id"]; ok {
		projected["_id"] = id
	}
	for _, field := range fields {
		if value, ok := doc[field]; ok {
			projected[field] = value
		}
	}
	return projected
}

func matchesFilter(doc bson.M, filter bson.M) bool {
	for field, condition := range filter {
		value, present := doc[field]
		operators, ok := toOperatorMap(condition)
		if !ok {
			if !present || !equalValues(value, condition) {
				return false
			}
			continue
		}
		for op, argument := range operators {
			switch op {
			case "$in":
				if !present || !memberOf(value, argument) {
					return false
				}
			case "$gte":
				if !present || compareValues(value, argument) < 0 {
					return false
				}
			case "$lte":
				if !present || compareValues(value, argument) > 0 {
					return false
				}
			case "$regex":
				pattern, isString := argument.(string)
				if !present || !isString || !matchesPattern(value, pattern) {
					return false
				}
			case "$options":
				// consumed alongside $regex; patterns match case-insensitively
			default:
				return false
			}
		}
	}
	return true
}

func toOperatorMap(condition any) (bson.M, bool) {
	switch m := condition.(type) {
	case bson.M:
		for key := range m {
			if !strings.HasPrefix(key, "$") {
				return nil, false
			}
		}
		return m, len(m) > 0
	default:
		return nil, false
	}
}

func memberOf(value any, argument any) bool {
	switch list := argument.(type) {
	case []string:
		for _, candidate := range list {
			if equalValues(value, candidate) {
				return true
			}
		}
	case bson.A:
		for _, candidate := range list {
			if equalValues(value, candidate) {
				return true
			}
		}
	case []any:
		for _, candidate := range list {
			if equalValues(value, candidate) {
				return true
			}
		}
	}
	return false
}

func matchesPattern(value any, pattern string) bool {
	text, ok := value.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return strings.Contains(strings.ToLower(text), strings.ToLower(pattern))
	}
	return re.MatchString(text)
}

func sortDocuments(docs []bson.M, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			cmp := compareValues(docs[i][field.Key], docs[j][field.Key])
			if cmp == 0 {
				continue
			}
			if field.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func equalValues(a, b any) bool {
	return compareValues(a, b) == 0
}

// compareValues orders two bson values. Missing values (nil) sort first, then
// numbers, then strings, matching what the traversal sorts rely on.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if aID, ok := a.(primitive.ObjectID); ok {
		if bID, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(aID.Hex(), bID.Hex())
		}
		if bHex, ok := b.(string); ok {
			return strings.Compare(aID.Hex(), bHex)
		}
	}
	if aHex, ok := a.(string); ok {
		if bID, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(aHex, bID.Hex())
		}
	}

	aNum, aIsNum := toFloat(a)
	bNum, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	aText, aIsText := a.(string)
	bText, bIsText := b.(string)
	if aIsText && bIsText {
		return strings.Compare(aText, bText)
	}

	aBool, aIsBool := a.(bool)
	bBool, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		switch {
		case aBool == bBool:
			return 0
		case !aBool:
			return -1
		default:
			return 1
		}
	}

	return strings.Compare(strings.ToLower(strings.TrimSpace(stringify(a))), strings.ToLower(strings.TrimSpace(stringify(b))))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	raw, err := bson.MarshalExtJSON(bson.M{"v": value}, false, false)
	if err != nil {
		return ""
	}
	return string(raw)
}
