package entityloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/metacat-io/metacat/internal/domain"
	"github.com/metacat-io/metacat/internal/repository"
)

// EntityLoader batches entity lookups so hydrating a page of search hits
// issues one query instead of one per hit.
type EntityLoader struct {
	Loader *dataloader.Loader
}

// NewEntityLoader creates a batched loader over the entity repository.
func NewEntityLoader(repo repository.EntityRepository) *EntityLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		entities, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map ID -> entity so results line up with the requested keys.
		entityMap := make(map[uuid.UUID]domain.Entity)
		for _, e := range entities {
			entityMap[e.ID] = e
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if e, ok := entityMap[id]; ok {
				results[i] = &dataloader.Result{Data: e}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &EntityLoader{Loader: loader}
}

// LoadMany fetches entities for the given IDs through the batch window,
// skipping IDs the catalog no longer knows.
func (l *EntityLoader) LoadMany(ctx context.Context, ids []string) ([]domain.Entity, error) {
	keys := make(dataloader.Keys, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		keys = append(keys, dataloader.StringKey(id))
	}
	if len(keys) == 0 {
		return []domain.Entity{}, nil
	}

	thunk := l.Loader.LoadMany(ctx, keys)
	raw, errs := thunk()
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load entities: %v", errs[0])
	}

	entities := make([]domain.Entity, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		entity, ok := item.(domain.Entity)
		if !ok {
			return nil, fmt.Errorf("unexpected type for entity")
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
