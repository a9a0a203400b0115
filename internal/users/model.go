// Package users manages account records and per-user preferences.
package users

import "strings"

// User is one account record. ID is the canonical identifier issued at
// signup; the ticklist field on the same document is owned by the ticklist
// package and deliberately not modeled here, so account writes cannot clobber
// it.
type User struct {
	ID       string `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	Password string `bson:"password,omitempty" json:"-"`
}

// Preferences is the per-user UI state persisted between sessions.
type Preferences struct {
	UserID          string `bson:"user_id" json:"user_id"`
	DefaultGym      string `bson:"default_gym" json:"default_gym"`
	ShowLatestWalls bool   `bson:"latest_walls" json:"latest_walls"`
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
