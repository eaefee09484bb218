package engine

import (
	"context"

	"github.com/recordkit/recordkit/internal/cache"
	"github.com/recordkit/recordkit/internal/domain"
)

// DefineObjectType registers a new object type for the tenant.
func (e *Engine) DefineObjectType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error) {
	created, err := e.store.Registry.CreateType(ctx, tenant, t)
	if err != nil {
		return nil, domain.Internal("define object type", err)
	}
	e.cache.DeleteByPrefix(cache.SchemaPrefix(tenant))
	return created, nil
}

// GetObjectType looks up a type by internal name or ID.
func (e *Engine) GetObjectType(ctx context.Context, tenant, name string) (*domain.ObjectType, error) {
	t, err := e.store.Registry.GetType(ctx, tenant, name)
	if err != nil {
		return nil, domain.Internal("get object type", err)
	}
	return t, nil
}

// ListObjectTypes returns all types defined for the tenant.
func (e *Engine) ListObjectTypes(ctx context.Context, tenant string) ([]*domain.ObjectType, error) {
	types, err := e.store.Registry.ListTypes(ctx, tenant)
	if err != nil {
		return nil, domain.Internal("list object types", err)
	}
	return types, nil
}

// UpdateObjectType replaces the mutable parts of a type definition. The
// internal name and record prefix stay fixed; the store ignores them.
func (e *Engine) UpdateObjectType(ctx context.Context, tenant string, t *domain.ObjectType) (*domain.ObjectType, error) {
	updated, err := e.store.Registry.UpdateType(ctx, tenant, t)
	if err != nil {
		return nil, domain.Internal("update object type", err)
	}
	e.cache.DeleteByPrefix(cache.SchemaPrefix(tenant))
	return updated, nil
}

// DefineProperty adds a property definition, type-scoped or global. A
// required property cannot be added to a type that already has records, since
// every existing record would instantly violate it.
func (e *Engine) DefineProperty(ctx context.Context, tenant string, def *domain.PropertyDefinition) (*domain.PropertyDefinition, error) {
	if def.Required && !def.Global() {
		t, err := e.store.Registry.GetType(ctx, tenant, def.ObjectType)
		if err != nil {
			return nil, domain.Internal("define property", err)
		}
		has, err := e.store.Registry.TypeHasRecords(ctx, tenant, t.ID)
		if err != nil {
			return nil, domain.Internal("define property", err)
		}
		if has {
			return nil, &domain.ValidationError{
				Message: "cannot add a required property to a type that already has records",
			}
		}
	}

	created, err := e.store.Registry.CreateProperty(ctx, tenant, def)
	if err != nil {
		return nil, domain.Internal("define property", err)
	}
	e.cache.DeleteByPrefix(cache.SchemaPrefix(tenant))
	return created, nil
}

// GetSchema returns the merged schema for a type: the type plus its effective
// property definitions. Schemas are cached per tenant and type name; cached
// instances are shared and must be treated as read-only.
func (e *Engine) GetSchema(ctx context.Context, tenant, typeName string) (*domain.Schema, error) {
	key := cache.SchemaKey(tenant, typeName)
	if v, ok := e.cache.Get(key); ok {
		if s, ok := v.(*domain.Schema); ok {
			return s, nil
		}
	}

	s, err := e.store.Registry.GetSchema(ctx, tenant, typeName)
	if err != nil {
		return nil, domain.Internal("get schema", err)
	}
	e.cache.Set(key, s, e.cacheTTL)
	return s, nil
}
