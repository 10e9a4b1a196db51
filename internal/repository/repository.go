package repository

import (
	"encoding/json"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// marshalJSON encodes a value as a JSON column, mapping nil slices to "[]".
func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
