package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recordkit/recordkit/internal/domain"
)

// now returns the current UTC time in the canonical timestamp layout.
func now() string {
	return time.Now().UTC().Format(domain.TimeFormat)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// marshalJSON encodes v for a nullable JSON column. Nil and empty collections
// store as NULL.
func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json column: %w", err)
	}
	s := string(b)
	if s == "null" || s == "[]" || s == "{}" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// unmarshalJSON decodes a nullable JSON column into out, leaving out untouched
// for NULL.
func unmarshalJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
