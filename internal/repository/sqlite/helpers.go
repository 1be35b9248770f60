package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pingwatch/internal/domain"
	"pingwatch/internal/state"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToBool converts sql.NullInt64 to bool (0 = false, non-zero = true)
func nullToBool(ni sql.NullInt64) bool {
	return ni.Valid && ni.Int64 != 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals interface to nullable JSON string.
// nil and empty string maps are stored as NULL.
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if m, ok := v.(map[string]string); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// normalize gives subscribers the same value shape a later GetState returns
func normalize(v any) any {
	switch n := v.(type) {
	case nil, bool, string, float64:
		return v
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case float32:
		return float64(n)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// ============================================================================
// State Row Scanner
// ============================================================================

// stateRow holds all columns from a state query for scanning
type stateRow struct {
	ID      string
	ValJSON sql.NullString
	Ack     sql.NullInt64
	Ts      time.Time
}

// scanArgs MUST match stateColumns order: id, val, ack, ts
func (r *stateRow) scanArgs() []interface{} {
	return []interface{}{&r.ID, &r.ValJSON, &r.Ack, &r.Ts}
}

func (r *stateRow) toState() (*state.State, error) {
	st := &state.State{ID: r.ID, Ack: nullToBool(r.Ack), Ts: r.Ts}
	if err := unmarshalJSONField(r.ValJSON, &st.Val); err != nil {
		return nil, fmt.Errorf("unmarshal state %s: %w", r.ID, err)
	}
	return st, nil
}

const stateColumns = `id, val, ack, ts`

// ============================================================================
// Object Row Scanner
// ============================================================================

// objectRow holds all columns from an object query for scanning
type objectRow struct {
	ID         string
	Type       string
	CommonJSON sql.NullString
	NativeJSON sql.NullString
}

// scanArgs MUST match objectColumns order: id, type, common, native
func (r *objectRow) scanArgs() []interface{} {
	return []interface{}{&r.ID, &r.Type, &r.CommonJSON, &r.NativeJSON}
}

// toDomain converts the scanned row to a domain.Object
func (r *objectRow) toDomain() (*domain.Object, error) {
	obj := &domain.Object{ID: r.ID, Type: domain.ObjectType(r.Type)}
	if err := unmarshalJSONField(r.CommonJSON, &obj.Common); err != nil {
		return nil, fmt.Errorf("unmarshal common: %w", err)
	}
	if err := unmarshalJSONField(r.NativeJSON, &obj.Native); err != nil {
		return nil, fmt.Errorf("unmarshal native: %w", err)
	}
	return obj, nil
}

const objectColumns = `id, type, common, native`

// objectInsertArgs prepares arguments for object UPSERT: id, type, common, native
func objectInsertArgs(obj domain.Object) ([]interface{}, error) {
	common, err := json.Marshal(obj.Common)
	if err != nil {
		return nil, fmt.Errorf("marshal common: %w", err)
	}
	native, err := marshalToNull(obj.Native)
	if err != nil {
		return nil, fmt.Errorf("marshal native: %w", err)
	}
	return []interface{}{obj.ID, string(obj.Type), string(common), native}, nil
}
