package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/recordkit/recordkit/internal/cache"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/store"
)

// CreateRecord validates the initial properties against the type's schema,
// allocates a public record ID and writes the record, its property values and
// the record_created activity entry in one transaction. Nothing persists on
// failure, including the ID counter bump.
func (e *Engine) CreateRecord(ctx context.Context, tenant, actor string, in *domain.CreateInput) (*domain.Record, error) {
	schema, err := e.GetSchema(ctx, tenant, in.Type)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range schema.RequiredProperties() {
		if v, ok := in.Properties[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("missing required properties: %s", strings.Join(missing, ", ")),
		}
	}

	names := sortedKeys(in.Properties)
	ts := now()
	var objectID string
	var created *domain.ActivityEntry

	err = e.store.InTx(ctx, func(tx *store.Store) error {
		id, err := tx.Registry.NextRecordID(ctx, tenant, schema.Type.ID)
		if err != nil {
			return err
		}
		objectID = id

		rowID, err := tx.Objects.Insert(ctx, tenant, schema.Type.ID, objectID, in.Name, in.OwnerID, ts)
		if err != nil {
			return err
		}

		var changes []domain.PropertyChange
		for _, name := range names {
			def := schema.Property(name)
			if def == nil {
				return &domain.UnknownPropertyError{Property: name}
			}
			v, err := e.validateValue(ctx, tx, tenant, schema, def, in.Properties[name], rowID)
			if err != nil {
				return err
			}
			if v == nil {
				continue
			}
			if err := tx.Values.Set(ctx, rowID, def, v, ts); err != nil {
				return err
			}
			changes = append(changes, domain.PropertyChange{Property: name, New: v})
		}

		created, err = tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   objectID,
			ObjectType: schema.Type.InternalName,
			Type:       domain.ActivityRecordCreated,
			Changes:    changes,
			ActorID:    actor,
		})
		return err
	})
	if err != nil {
		return nil, domain.Internal("create record", err)
	}

	e.announce(ctx, tenant, schema.Type.InternalName, []*domain.ActivityEntry{created})
	return e.GetRecord(ctx, tenant, objectID)
}

// GetRecord returns a record with its properties, read through the cache.
// Deleted records are invisible here.
func (e *Engine) GetRecord(ctx context.Context, tenant, objectID string) (*domain.Record, error) {
	key := cache.RecordKey(tenant, objectID)
	if v, ok := e.cache.Get(key); ok {
		if r, ok := v.(*domain.Record); ok {
			return cloneRecord(r), nil
		}
	}

	ref, err := e.store.Objects.Resolve(ctx, tenant, objectID)
	if err != nil {
		return nil, domain.Internal("get record", err)
	}
	if ref.Status == domain.StatusDeleted {
		return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
	}

	r, err := e.store.Objects.Get(ctx, tenant, objectID)
	if err != nil {
		return nil, domain.Internal("get record", err)
	}
	props, err := e.store.Values.GetAll(ctx, ref.RowID)
	if err != nil {
		return nil, domain.Internal("get record", err)
	}
	r.Properties = props

	e.cache.Set(key, cloneRecord(r), e.cacheTTL)
	return r, nil
}

// GetProperties returns the record's property values by name.
func (e *Engine) GetProperties(ctx context.Context, tenant, objectID string) (map[string]any, error) {
	r, err := e.GetRecord(ctx, tenant, objectID)
	if err != nil {
		return nil, err
	}
	return r.Properties, nil
}

// ListRecords pages through records of one type with their properties.
func (e *Engine) ListRecords(ctx context.Context, tenant, typeName string, limit int, after string, includeArchived bool) (*domain.RecordPage, error) {
	t, err := e.store.Registry.GetType(ctx, tenant, typeName)
	if err != nil {
		return nil, domain.Internal("list records", err)
	}

	page, rowIDs, err := e.store.Objects.List(ctx, tenant, t.ID, limit, after, includeArchived)
	if err != nil {
		return nil, domain.Internal("list records", err)
	}
	for i, rowID := range rowIDs {
		props, err := e.store.Values.GetAll(ctx, rowID)
		if err != nil {
			return nil, domain.Internal("list records", err)
		}
		page.Results[i].Properties = props
	}
	return page, nil
}

// UpdateRecord applies a partial patch: core fields and any number of
// property changes, all in one transaction. Each changed property appends its
// own activity entry carrying the old/new pair; unchanged values are skipped.
func (e *Engine) UpdateRecord(ctx context.Context, tenant, actor, objectID string, in *domain.UpdateInput) (*domain.Record, error) {
	unlock := e.locks.lock(lockKey(tenant, objectID))
	defer unlock()

	ref, err := e.resolveLive(ctx, tenant, objectID)
	if err != nil {
		return nil, err
	}
	schema, err := e.GetSchema(ctx, tenant, ref.TypeName)
	if err != nil {
		return nil, err
	}

	names := sortedKeys(in.Properties)
	ts := now()
	var entries []*domain.ActivityEntry

	err = e.store.InTx(ctx, func(tx *store.Store) error {
		entries = entries[:0]
		for _, name := range names {
			def := schema.Property(name)
			if def == nil {
				return &domain.UnknownPropertyError{Property: name}
			}
			raw := in.Properties[name]

			old, err := tx.Values.Get(ctx, ref.RowID, def)
			if err != nil {
				return err
			}

			var v any
			if raw == nil {
				if def.Required {
					return &domain.ValidationError{
						Message: fmt.Sprintf("required property %q cannot be cleared", name),
					}
				}
			} else {
				v, err = e.validateValue(ctx, tx, tenant, schema, def, raw, ref.RowID)
				if err != nil {
					return err
				}
			}
			if domain.ValueEqual(old, v) {
				continue
			}

			if err := tx.Values.Set(ctx, ref.RowID, def, v, ts); err != nil {
				return err
			}
			entry, err := tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
				ObjectID:   objectID,
				ObjectType: ref.TypeName,
				Type:       domain.ActivityPropertyChanged,
				Changes:    []domain.PropertyChange{{Property: name, Old: old, New: v}},
				Reason:     in.Reason,
				ActorID:    actor,
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if in.Name != nil || in.OwnerID != nil || len(entries) > 0 {
			return tx.Objects.UpdateCore(ctx, ref.RowID, in.Name, in.OwnerID, ts)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Internal("update record", err)
	}

	e.invalidateRecord(tenant, objectID)
	e.announce(ctx, tenant, ref.TypeName, entries)
	return e.GetRecord(ctx, tenant, objectID)
}

// SetProperty writes one property value, with full validation and activity
// logging. A nil value clears the property.
func (e *Engine) SetProperty(ctx context.Context, tenant, actor, objectID, name string, value any) (*domain.Record, error) {
	return e.UpdateRecord(ctx, tenant, actor, objectID, &domain.UpdateInput{
		Properties: map[string]any{name: value},
	})
}

// SetProperties writes a batch of property values atomically: either every
// named property commits or none do.
func (e *Engine) SetProperties(ctx context.Context, tenant, actor, objectID string, props map[string]any, reason string) (*domain.Record, error) {
	return e.UpdateRecord(ctx, tenant, actor, objectID, &domain.UpdateInput{
		Properties: props,
		Reason:     reason,
	})
}

// ArchiveRecord hides an active record from default listings. Property
// values, relationships and activity history stay intact.
func (e *Engine) ArchiveRecord(ctx context.Context, tenant, actor, objectID string) (*domain.Record, error) {
	return e.setStatus(ctx, tenant, actor, objectID, domain.StatusArchived)
}

// RestoreRecord brings an archived or soft-deleted record back to active.
func (e *Engine) RestoreRecord(ctx context.Context, tenant, actor, objectID string) (*domain.Record, error) {
	return e.setStatus(ctx, tenant, actor, objectID, domain.StatusActive)
}

// DeleteRecord soft-deletes a record. Its property values, relationships and
// activity history remain stored; the record itself becomes invisible to
// reads, listings and search until restored.
func (e *Engine) DeleteRecord(ctx context.Context, tenant, actor, objectID string) error {
	_, err := e.setStatus(ctx, tenant, actor, objectID, domain.StatusDeleted)
	return err
}

func (e *Engine) setStatus(ctx context.Context, tenant, actor, objectID string, status domain.RecordStatus) (*domain.Record, error) {
	unlock := e.locks.lock(lockKey(tenant, objectID))
	defer unlock()

	ref, err := e.store.Objects.Resolve(ctx, tenant, objectID)
	if err != nil {
		return nil, domain.Internal("resolve record", err)
	}

	var entryType domain.ActivityType
	switch status {
	case domain.StatusArchived:
		if ref.Status == domain.StatusDeleted {
			return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
		}
		if ref.Status == domain.StatusArchived {
			return nil, &domain.ConflictError{Message: fmt.Sprintf("record %s is already archived", objectID)}
		}
		entryType = domain.ActivityRecordArchived
	case domain.StatusActive:
		if ref.Status == domain.StatusActive {
			return nil, &domain.ConflictError{Message: fmt.Sprintf("record %s is not archived or deleted", objectID)}
		}
		entryType = domain.ActivityRecordRestored
	case domain.StatusDeleted:
		if ref.Status == domain.StatusDeleted {
			return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
		}
		entryType = domain.ActivityRecordDeleted
	}

	ts := now()
	var entry *domain.ActivityEntry
	err = e.store.InTx(ctx, func(tx *store.Store) error {
		if err := tx.Objects.SetStatus(ctx, ref.RowID, status, ts); err != nil {
			return err
		}
		entry, err = tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   objectID,
			ObjectType: ref.TypeName,
			Type:       entryType,
			ActorID:    actor,
		})
		return err
	})
	if err != nil {
		return nil, domain.Internal("set record status", err)
	}

	e.invalidateRecord(tenant, objectID)
	e.announce(ctx, tenant, ref.TypeName, []*domain.ActivityEntry{entry})
	if status == domain.StatusDeleted {
		return nil, nil
	}
	return e.GetRecord(ctx, tenant, objectID)
}

// resolveLive resolves a public ID and rejects deleted records, which are
// read-only stubs.
func (e *Engine) resolveLive(ctx context.Context, tenant, objectID string) (*store.ObjectRef, error) {
	ref, err := e.store.Objects.Resolve(ctx, tenant, objectID)
	if err != nil {
		return nil, domain.Internal("resolve record", err)
	}
	if ref.Status == domain.StatusDeleted {
		return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
	}
	return ref, nil
}

// validateValue coerces a raw value and applies the definition's rules,
// uniqueness and reference integrity. It runs inside the write transaction so
// the checks are atomic with the write; excludeRow is the record's own row.
func (e *Engine) validateValue(ctx context.Context, tx *store.Store, tenant string, schema *domain.Schema, def *domain.PropertyDefinition, raw any, excludeRow int64) (any, error) {
	v, err := domain.Coerce(def, raw)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if err := domain.ValidateRules(def, v); err != nil {
		return nil, err
	}

	if def.DataType == domain.TypeReference {
		target := v.(string)
		ref, err := tx.Objects.Resolve(ctx, tenant, target)
		if err != nil {
			if domain.ErrorCode(err) == domain.CodeNotFound {
				return nil, &domain.DanglingReferenceError{Property: def.Name, Target: target}
			}
			return nil, err
		}
		if ref.Status == domain.StatusDeleted {
			return nil, &domain.DanglingReferenceError{Property: def.Name, Target: target}
		}
		if def.ReferencedType != "" && ref.TypeName != def.ReferencedType {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("property %q must reference a %s record, %s is a %s",
					def.Name, def.ReferencedType, target, ref.TypeName),
			}
		}
	}

	if def.Unique {
		taken, err := tx.Values.ValueTaken(ctx, tenant, schema.Type.ID, def, v, excludeRow)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, &domain.ConflictError{
				Message: fmt.Sprintf("value %q for property %q is already in use", domain.ValueString(v), def.Name),
			}
		}
	}
	return v, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
