package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/metacat-io/metacat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// EntityRepository defines the interface for catalog entity operations
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error)
	GetByFQN(ctx context.Context, entityType, fullyQualifiedName string) (domain.Entity, error)
	List(ctx context.Context, filter *domain.EntityFilter, sort *domain.EntitySort, limit int, offset int) ([]domain.Entity, int, error)
	Update(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID, toVersion int64, reason string) (domain.Entity, error)

	// Hierarchical operations over FQN paths
	GetDescendants(ctx context.Context, fullyQualifiedName string) ([]domain.Entity, error)
	GetChildren(ctx context.Context, fullyQualifiedName string) ([]domain.Entity, error)

	Count(ctx context.Context) (int64, error)
	CountByType(ctx context.Context, entityType string) (int64, error)
}

// EntityVersionRepository reads the immutable version history.
type EntityVersionRepository interface {
	ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error)
	GetVersion(ctx context.Context, entityID uuid.UUID, version int64) (domain.EntityVersion, error)
}
