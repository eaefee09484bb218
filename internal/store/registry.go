package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/recordkit/recordkit/internal/domain"
)

// RegistryStore persists per-tenant object types and property definitions.
type RegistryStore interface {
	CreateType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error)
	GetType(ctx context.Context, tenant, name string) (*domain.ObjectType, error)
	ListTypes(ctx context.Context, tenant string) ([]*domain.ObjectType, error)
	UpdateType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error)
	TypeHasRecords(ctx context.Context, tenant, typeID string) (bool, error)
	NextRecordID(ctx context.Context, tenant, typeID string) (string, error)
	CreateProperty(ctx context.Context, tenant string, def *domain.PropertyDefinition) (*domain.PropertyDefinition, error)
	GetSchema(ctx context.Context, tenant, typeName string) (*domain.Schema, error)
}

// SQLiteRegistryStore implements RegistryStore backed by SQLite.
type SQLiteRegistryStore struct {
	q DBTX
}

// NewSQLiteRegistryStore creates a new SQLiteRegistryStore.
func NewSQLiteRegistryStore(q DBTX) *SQLiteRegistryStore {
	return &SQLiteRegistryStore{q: q}
}

const typeCols = `id, internal_name, label, plural_label, record_prefix, display_property,
	is_system, features, searchable_properties, allowed_associations, created_at, updated_at`

func scanType(row interface{ Scan(...any) error }) (*domain.ObjectType, error) {
	var t domain.ObjectType
	var plural, display, features, searchable, assocs sql.NullString
	err := row.Scan(&t.ID, &t.InternalName, &t.Label, &plural, &t.RecordPrefix, &display,
		&t.IsSystem, &features, &searchable, &assocs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.PluralLabel = fromNull(plural)
	t.DisplayProperty = fromNull(display)
	if err := unmarshalJSON(features, &t.Features); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(searchable, &t.SearchableProperties); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(assocs, &t.AllowedAssociations); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateType inserts a new object type for the tenant. The internal name must
// be unique within the tenant.
func (s *SQLiteRegistryStore) CreateType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error) {
	if t.InternalName == "" {
		return nil, &domain.ValidationError{Message: "internalName is required"}
	}
	if t.RecordPrefix == "" {
		return nil, &domain.ValidationError{Message: "recordPrefix is required"}
	}

	var exists int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM object_types WHERE tenant_id = ? AND internal_name = ?`,
		tenant, t.InternalName,
	).Scan(&exists)
	if err == nil {
		return nil, &domain.ConflictError{Message: fmt.Sprintf("object type %q already exists", t.InternalName)}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check type exists: %w", err)
	}

	ts := now()
	id := uuid.NewString()
	features, err := marshalJSON(t.Features)
	if err != nil {
		return nil, err
	}
	searchable, err := marshalJSON(t.SearchableProperties)
	if err != nil {
		return nil, err
	}
	assocs, err := marshalJSON(t.AllowedAssociations)
	if err != nil {
		return nil, err
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO object_types (id, tenant_id, internal_name, label, plural_label, record_prefix,
			display_property, is_system, features, searchable_properties, allowed_associations,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, '{}'), ?, ?, ?, ?)`,
		id, tenant, t.InternalName, t.Label, nullString(t.PluralLabel), t.RecordPrefix,
		nullString(t.DisplayProperty), t.IsSystem, features, searchable, assocs, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert object type: %w", err)
	}

	return s.getTypeByID(ctx, tenant, id)
}

// GetType fetches an object type by internal name or ID.
func (s *SQLiteRegistryStore) GetType(ctx context.Context, tenant, name string) (*domain.ObjectType, error) {
	t, err := scanType(s.q.QueryRowContext(ctx,
		`SELECT `+typeCols+` FROM object_types WHERE tenant_id = ? AND (internal_name = ? OR id = ?)`,
		tenant, name, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.UnknownTypeError{Name: name}
		}
		return nil, fmt.Errorf("get object type: %w", err)
	}
	return t, nil
}

func (s *SQLiteRegistryStore) getTypeByID(ctx context.Context, tenant, id string) (*domain.ObjectType, error) {
	t, err := scanType(s.q.QueryRowContext(ctx,
		`SELECT `+typeCols+` FROM object_types WHERE tenant_id = ? AND id = ?`, tenant, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.UnknownTypeError{Name: id}
		}
		return nil, fmt.Errorf("get object type: %w", err)
	}
	return t, nil
}

// ListTypes returns all object types of the tenant in definition order.
func (s *SQLiteRegistryStore) ListTypes(ctx context.Context, tenant string) ([]*domain.ObjectType, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+typeCols+` FROM object_types WHERE tenant_id = ? ORDER BY created_at, internal_name`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("list object types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var types []*domain.ObjectType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan object type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// UpdateType replaces the mutable parts of a type definition: labels, display
// property, features, searchable properties and allowed associations. The
// internal name and record prefix never change.
func (s *SQLiteRegistryStore) UpdateType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error) {
	existing, err := s.GetType(ctx, tenant, t.InternalName)
	if err != nil {
		return nil, err
	}

	features, err := marshalJSON(t.Features)
	if err != nil {
		return nil, err
	}
	searchable, err := marshalJSON(t.SearchableProperties)
	if err != nil {
		return nil, err
	}
	assocs, err := marshalJSON(t.AllowedAssociations)
	if err != nil {
		return nil, err
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE object_types SET label = ?, plural_label = ?, display_property = ?,
			features = COALESCE(?, '{}'), searchable_properties = ?, allowed_associations = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		t.Label, nullString(t.PluralLabel), nullString(t.DisplayProperty),
		features, searchable, assocs, now(), tenant, existing.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update object type: %w", err)
	}

	return s.getTypeByID(ctx, tenant, existing.ID)
}

// TypeHasRecords reports whether any record of the type exists, deleted ones
// included.
func (s *SQLiteRegistryStore) TypeHasRecords(ctx context.Context, tenant, typeID string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM objects WHERE tenant_id = ? AND object_type_id = ? LIMIT 1`,
		tenant, typeID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check type records: %w", err)
	}
	return true, nil
}

// NextRecordID allocates the next public record ID for the type, e.g.
// "DEAL-42". Callers must run this inside the transaction that inserts the
// record so the counter never skips on rollback.
func (s *SQLiteRegistryStore) NextRecordID(ctx context.Context, tenant, typeID string) (string, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE object_types SET next_record_num = next_record_num + 1 WHERE tenant_id = ? AND id = ?`,
		tenant, typeID,
	)
	if err != nil {
		return "", fmt.Errorf("advance record counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return "", &domain.UnknownTypeError{Name: typeID}
	}

	var prefix string
	var num int64
	err = s.q.QueryRowContext(ctx,
		`SELECT record_prefix, next_record_num FROM object_types WHERE tenant_id = ? AND id = ?`,
		tenant, typeID,
	).Scan(&prefix, &num)
	if err != nil {
		return "", fmt.Errorf("read record counter: %w", err)
	}
	return fmt.Sprintf("%s-%d", prefix, num), nil
}

// CreateProperty inserts a property definition. An empty ObjectType makes the
// definition global to the tenant. Names must be unique within their scope,
// and reference definitions must point at a known type.
func (s *SQLiteRegistryStore) CreateProperty(ctx context.Context, tenant string, def *domain.PropertyDefinition) (*domain.PropertyDefinition, error) {
	if def.Name == "" {
		return nil, &domain.ValidationError{Message: "property name is required"}
	}
	if !domain.ValidDataType(def.DataType) {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown data type %q", def.DataType)}
	}

	var typeID sql.NullString
	if def.ObjectType != "" {
		t, err := s.GetType(ctx, tenant, def.ObjectType)
		if err != nil {
			return nil, err
		}
		typeID = nullString(t.ID)
		def.ObjectType = t.InternalName
	}

	if def.DataType == domain.TypeReference {
		if def.ReferencedType == "" {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("property %q: reference type requires referencedType", def.Name)}
		}
		if _, err := s.GetType(ctx, tenant, def.ReferencedType); err != nil {
			var unknown *domain.UnknownTypeError
			if errors.As(err, &unknown) {
				return nil, &domain.DanglingReferenceError{Property: def.Name, Target: def.ReferencedType}
			}
			return nil, err
		}
	}

	taken, err := s.propertyNameTaken(ctx, tenant, typeID, def.Name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("property %q already defined in this scope", def.Name)}
	}

	options, err := marshalJSON(def.Options)
	if err != nil {
		return nil, err
	}
	rules := sql.NullString{}
	if !def.Rules.Empty() {
		if rules, err = marshalJSON(def.Rules); err != nil {
			return nil, err
		}
	}

	ts := now()
	id := uuid.NewString()
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO property_definitions (id, tenant_id, object_type_id, name, label, data_type,
			is_required, is_unique, options, referenced_type, validation_rules, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenant, typeID, def.Name, def.Label, string(def.DataType),
		def.Required, def.Unique, options, nullString(def.ReferencedType), rules, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert property definition: %w", err)
	}

	return s.getPropertyByID(ctx, tenant, id)
}

func (s *SQLiteRegistryStore) propertyNameTaken(ctx context.Context, tenant string, typeID sql.NullString, name string) (bool, error) {
	var one int
	var err error
	if typeID.Valid {
		err = s.q.QueryRowContext(ctx,
			`SELECT 1 FROM property_definitions WHERE tenant_id = ? AND object_type_id = ? AND name = ?`,
			tenant, typeID.String, name,
		).Scan(&one)
	} else {
		err = s.q.QueryRowContext(ctx,
			`SELECT 1 FROM property_definitions WHERE tenant_id = ? AND object_type_id IS NULL AND name = ?`,
			tenant, name,
		).Scan(&one)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check property name: %w", err)
	}
	return true, nil
}

const propertyCols = `pd.id, pd.object_type_id, ot.internal_name, pd.name, pd.label, pd.data_type,
	pd.is_required, pd.is_unique, pd.options, pd.referenced_type, pd.validation_rules,
	pd.created_at, pd.updated_at`

const propertyFrom = ` FROM property_definitions pd
	LEFT JOIN object_types ot ON ot.id = pd.object_type_id`

func scanProperty(row interface{ Scan(...any) error }) (*domain.PropertyDefinition, error) {
	var p domain.PropertyDefinition
	var typeID, typeName, options, refType, rules sql.NullString
	var dataType string
	err := row.Scan(&p.ID, &typeID, &typeName, &p.Name, &p.Label, &dataType,
		&p.Required, &p.Unique, &options, &refType, &rules, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DataType = domain.DataType(dataType)
	p.ObjectType = fromNull(typeName)
	p.ReferencedType = fromNull(refType)
	if err := unmarshalJSON(options, &p.Options); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rules, &p.Rules); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteRegistryStore) getPropertyByID(ctx context.Context, tenant, id string) (*domain.PropertyDefinition, error) {
	p, err := scanProperty(s.q.QueryRowContext(ctx,
		`SELECT `+propertyCols+propertyFrom+` WHERE pd.tenant_id = ? AND pd.id = ?`, tenant, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.UnknownPropertyError{Property: id}
		}
		return nil, fmt.Errorf("get property definition: %w", err)
	}
	return p, nil
}

// GetSchema returns the merged schema for a type: global definitions first,
// then type-scoped ones, with type-scoped overriding globals of the same name.
func (s *SQLiteRegistryStore) GetSchema(ctx context.Context, tenant, typeName string) (*domain.Schema, error) {
	t, err := s.GetType(ctx, tenant, typeName)
	if err != nil {
		return nil, err
	}

	load := func(query string, args ...any) ([]*domain.PropertyDefinition, error) {
		rows, err := s.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("load property definitions: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var defs []*domain.PropertyDefinition
		for rows.Next() {
			p, err := scanProperty(rows)
			if err != nil {
				return nil, fmt.Errorf("scan property definition: %w", err)
			}
			defs = append(defs, p)
		}
		return defs, rows.Err()
	}

	global, err := load(
		`SELECT `+propertyCols+propertyFrom+` WHERE pd.tenant_id = ? AND pd.object_type_id IS NULL ORDER BY pd.created_at, pd.name`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	scoped, err := load(
		`SELECT `+propertyCols+propertyFrom+` WHERE pd.tenant_id = ? AND pd.object_type_id = ? ORDER BY pd.created_at, pd.name`,
		tenant, t.ID,
	)
	if err != nil {
		return nil, err
	}

	return &domain.Schema{Type: t, Properties: domain.MergeProperties(global, scoped)}, nil
}
