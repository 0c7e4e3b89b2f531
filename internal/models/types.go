package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StampMap maps a user id to the server timestamp of an acknowledgement.
// Stored as a JSONB object column.
type StampMap map[string]time.Time

// Value implements driver.Valuer.
func (m StampMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *StampMap) Scan(src any) error {
	return scanJSONB(src, m, "StampMap")
}

// FlagMap maps a user id to a boolean flag. Stored as a JSONB object column.
type FlagMap map[string]bool

// Value implements driver.Valuer.
func (m FlagMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *FlagMap) Scan(src any) error {
	return scanJSONB(src, m, "FlagMap")
}

func scanJSONB(src, dst any, name string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("%s: cannot scan %T", name, src)
	}
}
