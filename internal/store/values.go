package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
)

// ValueStore persists property values in their typed slots, one row per
// (object, property definition).
type ValueStore interface {
	Set(ctx context.Context, objectRow int64, def *domain.PropertyDefinition, value any, ts string) error
	Get(ctx context.Context, objectRow int64, def *domain.PropertyDefinition) (any, error)
	GetAll(ctx context.Context, objectRow int64) (map[string]any, error)
	ValueTaken(ctx context.Context, tenant, typeID string, def *domain.PropertyDefinition, value any, excludeRow int64) (bool, error)
}

// SQLiteValueStore implements ValueStore backed by SQLite.
type SQLiteValueStore struct {
	q DBTX
}

// NewSQLiteValueStore creates a new SQLiteValueStore.
func NewSQLiteValueStore(q DBTX) *SQLiteValueStore {
	return &SQLiteValueStore{q: q}
}

// slotColumn maps a data type to the property_values column holding it.
func slotColumn(dt domain.DataType) string {
	switch dt {
	case domain.TypeString, domain.TypeSelect:
		return "value_text"
	case domain.TypeNumber:
		return "value_number"
	case domain.TypeBoolean:
		return "value_bool"
	case domain.TypeDate:
		return "value_date"
	case domain.TypeMultiSelect:
		return "value_json"
	case domain.TypeReference:
		return "value_ref"
	}
	return "value_text"
}

// encodeSlot converts a canonical value into the driver value for the
// definition's slot. Values arrive pre-coerced, so a type mismatch here is a
// caller bug and is reported as such.
func encodeSlot(def *domain.PropertyDefinition, value any) (any, error) {
	mismatch := func() error {
		return &domain.TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: value}
	}
	switch def.DataType {
	case domain.TypeString, domain.TypeSelect, domain.TypeDate, domain.TypeReference:
		s, ok := value.(string)
		if !ok {
			return nil, mismatch()
		}
		return s, nil
	case domain.TypeNumber:
		f, ok := value.(float64)
		if !ok {
			return nil, mismatch()
		}
		return f, nil
	case domain.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	case domain.TypeMultiSelect:
		vals, ok := value.([]string)
		if !ok {
			return nil, mismatch()
		}
		b, err := json.Marshal(vals)
		if err != nil {
			return nil, fmt.Errorf("marshal multiselect: %w", err)
		}
		return string(b), nil
	}
	return nil, mismatch()
}

func decodeSlot(dt domain.DataType, text sql.NullString, num sql.NullFloat64, b sql.NullBool, date, js, ref sql.NullString) (any, error) {
	switch dt {
	case domain.TypeString, domain.TypeSelect:
		if text.Valid {
			return text.String, nil
		}
	case domain.TypeNumber:
		if num.Valid {
			return num.Float64, nil
		}
	case domain.TypeBoolean:
		if b.Valid {
			return b.Bool, nil
		}
	case domain.TypeDate:
		if date.Valid {
			return date.String, nil
		}
	case domain.TypeMultiSelect:
		if js.Valid {
			var vals []string
			if err := json.Unmarshal([]byte(js.String), &vals); err != nil {
				return nil, fmt.Errorf("unmarshal multiselect: %w", err)
			}
			return vals, nil
		}
	case domain.TypeReference:
		if ref.Valid {
			return ref.String, nil
		}
	}
	return nil, nil
}

// Set upserts the value into its typed slot, clearing every other slot. A nil
// value removes the row entirely.
func (s *SQLiteValueStore) Set(ctx context.Context, objectRow int64, def *domain.PropertyDefinition, value any, ts string) error {
	if value == nil {
		_, err := s.q.ExecContext(ctx,
			`DELETE FROM property_values WHERE object_id = ? AND property_definition_id = ?`,
			objectRow, def.ID,
		)
		if err != nil {
			return fmt.Errorf("clear property %s: %w", def.Name, err)
		}
		return nil
	}

	slot, err := encodeSlot(def, value)
	if err != nil {
		return err
	}

	var text, date, js, ref sql.NullString
	var num sql.NullFloat64
	var boolean sql.NullBool
	switch slotColumn(def.DataType) {
	case "value_text":
		text = sql.NullString{String: slot.(string), Valid: true}
	case "value_number":
		num = sql.NullFloat64{Float64: slot.(float64), Valid: true}
	case "value_bool":
		boolean = sql.NullBool{Bool: slot.(bool), Valid: true}
	case "value_date":
		date = sql.NullString{String: slot.(string), Valid: true}
	case "value_json":
		js = sql.NullString{String: slot.(string), Valid: true}
	case "value_ref":
		ref = sql.NullString{String: slot.(string), Valid: true}
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO property_values (object_id, property_definition_id, value_text, value_number,
			value_bool, value_date, value_json, value_ref, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(object_id, property_definition_id) DO UPDATE SET
			value_text = excluded.value_text, value_number = excluded.value_number,
			value_bool = excluded.value_bool, value_date = excluded.value_date,
			value_json = excluded.value_json, value_ref = excluded.value_ref,
			updated_at = excluded.updated_at`,
		objectRow, def.ID, text, num, boolean, date, js, ref, ts,
	)
	if err != nil {
		return fmt.Errorf("set property %s: %w", def.Name, err)
	}
	return nil
}

// Get reads one property value, nil if unset.
func (s *SQLiteValueStore) Get(ctx context.Context, objectRow int64, def *domain.PropertyDefinition) (any, error) {
	var text, date, js, ref sql.NullString
	var num sql.NullFloat64
	var boolean sql.NullBool
	err := s.q.QueryRowContext(ctx,
		`SELECT value_text, value_number, value_bool, value_date, value_json, value_ref
		 FROM property_values WHERE object_id = ? AND property_definition_id = ?`,
		objectRow, def.ID,
	).Scan(&text, &num, &boolean, &date, &js, &ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", def.Name, err)
	}
	return decodeSlot(def.DataType, text, num, boolean, date, js, ref)
}

// GetAll reads every property value of an object, keyed by property name and
// reconstructed from the dataType-tagged slot.
func (s *SQLiteValueStore) GetAll(ctx context.Context, objectRow int64) (map[string]any, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT pd.name, pd.data_type, pv.value_text, pv.value_number, pv.value_bool,
			pv.value_date, pv.value_json, pv.value_ref
		 FROM property_values pv
		 JOIN property_definitions pd ON pd.id = pv.property_definition_id
		 WHERE pv.object_id = ?`,
		objectRow,
	)
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	props := make(map[string]any)
	for rows.Next() {
		var name, dataType string
		var text, date, js, ref sql.NullString
		var num sql.NullFloat64
		var boolean sql.NullBool
		if err := rows.Scan(&name, &dataType, &text, &num, &boolean, &date, &js, &ref); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		v, err := decodeSlot(domain.DataType(dataType), text, num, boolean, date, js, ref)
		if err != nil {
			return nil, err
		}
		if v != nil {
			props[name] = v
		}
	}
	return props, rows.Err()
}

// ValueTaken reports whether another live record of the same tenant and type
// already holds this value, for unique-property enforcement.
func (s *SQLiteValueStore) ValueTaken(ctx context.Context, tenant, typeID string, def *domain.PropertyDefinition, value any, excludeRow int64) (bool, error) {
	if value == nil {
		return false, nil
	}
	slot, err := encodeSlot(def, value)
	if err != nil {
		return false, err
	}

	var one int
	err = s.q.QueryRowContext(ctx,
		`SELECT 1 FROM property_values pv
		 JOIN objects o ON o.id = pv.object_id
		 WHERE pv.property_definition_id = ? AND pv.`+slotColumn(def.DataType)+` = ?
		   AND o.tenant_id = ? AND o.object_type_id = ? AND o.id != ? AND o.status != 'deleted'
		 LIMIT 1`,
		def.ID, slot, tenant, typeID, excludeRow,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check unique value: %w", err)
	}
	return true, nil
}
