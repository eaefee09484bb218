package engine

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/cache"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/store"
)

// Associate links two records under a named relationship. The source type
// must allow the association name, the target must be of the configured type,
// and single-valued associations reject a second link. Both records must be
// live (active or archived).
func (e *Engine) Associate(ctx context.Context, tenant, actor, sourceID, targetID, name string) (*domain.Relationship, error) {
	if sourceID == targetID {
		return nil, &domain.InvalidAssociationError{Message: "a record cannot be associated with itself"}
	}

	unlock := e.locks.lock(lockKey(tenant, sourceID))
	defer unlock()

	srcRef, err := e.store.Objects.Resolve(ctx, tenant, sourceID)
	if err != nil {
		return nil, domain.Internal("resolve record", err)
	}
	if srcRef.Status == domain.StatusDeleted {
		return nil, &domain.InvalidAssociationError{Message: fmt.Sprintf("record %s is deleted", sourceID)}
	}
	tgtRef, err := e.store.Objects.Resolve(ctx, tenant, targetID)
	if err != nil {
		return nil, domain.Internal("resolve record", err)
	}
	if tgtRef.Status == domain.StatusDeleted {
		return nil, &domain.InvalidAssociationError{Message: fmt.Sprintf("record %s is deleted", targetID)}
	}

	schema, err := e.GetSchema(ctx, tenant, srcRef.TypeName)
	if err != nil {
		return nil, err
	}
	assoc := schema.Type.Association(name)
	if assoc == nil {
		return nil, &domain.InvalidAssociationError{
			Message: fmt.Sprintf("type %q does not allow association %q", srcRef.TypeName, name),
		}
	}
	if assoc.TargetType != "" && assoc.TargetType != tgtRef.TypeName {
		return nil, &domain.InvalidAssociationError{
			Message: fmt.Sprintf("association %q expects %s targets, %s is a %s",
				name, assoc.TargetType, targetID, tgtRef.TypeName),
		}
	}

	exists, err := e.store.Relationships.Exists(ctx, tenant, sourceID, targetID, name)
	if err != nil {
		return nil, domain.Internal("associate records", err)
	}
	if exists {
		return nil, &domain.ConflictError{
			Message: fmt.Sprintf("%s and %s are already associated as %q", sourceID, targetID, name),
		}
	}
	if !assoc.Multiple {
		has, err := e.store.Relationships.HasAny(ctx, tenant, sourceID, name)
		if err != nil {
			return nil, domain.Internal("associate records", err)
		}
		if has {
			return nil, &domain.InvalidAssociationError{
				Message: fmt.Sprintf("record %s already has a %q association", sourceID, name),
			}
		}
	}

	var rel *domain.Relationship
	var entry *domain.ActivityEntry
	err = e.store.InTx(ctx, func(tx *store.Store) error {
		var terr error
		rel, terr = tx.Relationships.Insert(ctx, tenant, &domain.Relationship{
			SourceID:    sourceID,
			TargetID:    targetID,
			Name:        name,
			InverseName: assoc.InverseName,
		})
		if terr != nil {
			return terr
		}
		entry, terr = tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   sourceID,
			ObjectType: srcRef.TypeName,
			Type:       domain.ActivityAssociationAdded,
			Changes:    []domain.PropertyChange{{Property: name, New: targetID}},
			ActorID:    actor,
		})
		return terr
	})
	if err != nil {
		return nil, domain.Internal("associate records", err)
	}

	e.invalidateRelated(tenant, sourceID, targetID, name, assoc.InverseName)
	e.announce(ctx, tenant, srcRef.TypeName, []*domain.ActivityEntry{entry})
	return rel, nil
}

// Dissociate removes a named link between two records. Removing a link that
// does not exist is a no-op, so retried deletes converge on the same state.
func (e *Engine) Dissociate(ctx context.Context, tenant, actor, sourceID, targetID, name string) error {
	unlock := e.locks.lock(lockKey(tenant, sourceID))
	defer unlock()

	srcRef, err := e.resolveLive(ctx, tenant, sourceID)
	if err != nil {
		return err
	}

	var removed bool
	var entry *domain.ActivityEntry
	err = e.store.InTx(ctx, func(tx *store.Store) error {
		var terr error
		removed, terr = tx.Relationships.Delete(ctx, tenant, sourceID, targetID, name)
		if terr != nil || !removed {
			return terr
		}
		entry, terr = tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   sourceID,
			ObjectType: srcRef.TypeName,
			Type:       domain.ActivityAssociationRemoved,
			Changes:    []domain.PropertyChange{{Property: name, Old: targetID}},
			ActorID:    actor,
		})
		return terr
	})
	if err != nil {
		return domain.Internal("dissociate records", err)
	}
	if !removed {
		return nil
	}

	inverse := ""
	if schema, serr := e.GetSchema(ctx, tenant, srcRef.TypeName); serr == nil {
		if assoc := schema.Type.Association(name); assoc != nil {
			inverse = assoc.InverseName
		}
	}
	e.invalidateRelated(tenant, sourceID, targetID, name, inverse)
	e.announce(ctx, tenant, srcRef.TypeName, []*domain.ActivityEntry{entry})
	return nil
}

// GetRelated returns the live records linked to objectID under the given
// association name, in link-creation order. Forward links are followed from
// the source side; inverse links are resolved by matching the stored inverse
// name from the target side. The ID list is cached; records read through the
// record cache. Deleted records are skipped, not errors.
func (e *Engine) GetRelated(ctx context.Context, tenant, objectID, name string) ([]*domain.Record, error) {
	if _, err := e.resolveLive(ctx, tenant, objectID); err != nil {
		return nil, err
	}

	key := cache.RelatedKey(tenant, objectID, name)
	ids, ok := cachedIDs(e.cache, key)
	if !ok {
		forward, err := e.store.Relationships.ListFrom(ctx, tenant, objectID, name)
		if err != nil {
			return nil, domain.Internal("list related records", err)
		}
		reverse, err := e.store.Relationships.ListTo(ctx, tenant, objectID, name)
		if err != nil {
			return nil, domain.Internal("list related records", err)
		}
		ids = mergeRelated(objectID, forward, reverse)
		e.cache.Set(key, ids, e.cacheTTL)
	}

	records := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		r, err := e.GetRecord(ctx, tenant, id)
		if err != nil {
			if domain.ErrorCode(err) == domain.CodeNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func cachedIDs(c cache.Cache, key string) ([]string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	ids, ok := v.([]string)
	return ids, ok
}

// mergeRelated interleaves forward and reverse links by relationship ID so
// the combined listing keeps creation order. Both inputs arrive ID-sorted.
func mergeRelated(objectID string, forward, reverse []*domain.Relationship) []string {
	ids := make([]string, 0, len(forward)+len(reverse))
	i, j := 0, 0
	for i < len(forward) || j < len(reverse) {
		if j >= len(reverse) || (i < len(forward) && forward[i].ID <= reverse[j].ID) {
			ids = append(ids, forward[i].TargetID)
			i++
		} else {
			ids = append(ids, reverse[j].SourceID)
			j++
		}
	}
	return ids
}

func (e *Engine) invalidateRelated(tenant, sourceID, targetID, name, inverseName string) {
	e.cache.Delete(cache.RelatedKey(tenant, sourceID, name))
	if inverseName != "" {
		e.cache.Delete(cache.RelatedKey(tenant, targetID, inverseName))
	}
}
