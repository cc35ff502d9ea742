package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metacat-io/metacat/internal/domain"
)

const versionColumns = `id, entity_id, entity_type, fqn, version, snapshot, change, change_type, reason, changed_at`

type entityVersionRepository struct {
	pool *pgxpool.Pool
}

// NewEntityVersionRepository creates a pgx-backed version history repository.
func NewEntityVersionRepository(pool *pgxpool.Pool) EntityVersionRepository {
	return &entityVersionRepository{pool: pool}
}

func (r *entityVersionRepository) ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM entity_versions
		 WHERE entity_id = $1 ORDER BY version DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.EntityVersion{}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate version rows: %w", err)
	}
	return versions, nil
}

func (r *entityVersionRepository) GetVersion(ctx context.Context, entityID uuid.UUID, version int64) (domain.EntityVersion, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM entity_versions
		 WHERE entity_id = $1 AND version = $2`, entityID, version)
	return scanVersion(row)
}

func scanVersion(row pgx.Row) (domain.EntityVersion, error) {
	var version domain.EntityVersion
	var snapshotJSON, changeJSON []byte

	err := row.Scan(
		&version.ID, &version.EntityID, &version.EntityType, &version.FQN, &version.Version,
		&snapshotJSON, &changeJSON, &version.ChangeType, &version.Reason, &version.ChangedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EntityVersion{}, ErrNotFound
	}
	if err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to scan version row: %w", err)
	}

	if err := json.Unmarshal(snapshotJSON, &version.Snapshot); err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to decode version snapshot: %w", err)
	}
	if err := json.Unmarshal(changeJSON, &version.Change); err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to decode change description: %w", err)
	}

	return version, nil
}
