package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*UsageSnapshot)(nil)
	_ driver.Valuer = UsageSnapshot(nil)
	_ sql.Scanner   = (*PlanLimits)(nil)
	_ driver.Valuer = PlanLimits(nil)
)

// scanJSONB unmarshals a JSONB column into dest, accepting the []byte and
// string representations drivers hand back.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner.
func (u *UsageSnapshot) Scan(value interface{}) error {
	if value == nil {
		*u = nil
		return nil
	}
	return scanJSONB(u, value)
}

// Value implements driver.Valuer. A nil snapshot is stored as an empty
// object rather than SQL NULL so that reads always yield a usable map.
func (u UsageSnapshot) Value() (driver.Value, error) {
	if u == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u)
}

// Scan implements sql.Scanner.
func (pl *PlanLimits) Scan(value interface{}) error {
	if value == nil {
		*pl = nil
		return nil
	}
	return scanJSONB(pl, value)
}

// Value implements driver.Valuer.
func (pl PlanLimits) Value() (driver.Value, error) {
	if pl == nil {
		return nil, nil
	}
	return json.Marshal(pl)
}
