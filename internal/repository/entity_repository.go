package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metacat-io/metacat/internal/domain"
	"github.com/metacat-io/metacat/pkg/fqn"
)

const entityColumns = `id, entity_type, fqn::text, name, display_name, description, owner,
	tags, properties, version, deleted, created_at, updated_at`

type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository creates a pgx-backed entity repository.
func NewEntityRepository(pool *pgxpool.Pool) EntityRepository {
	return &entityRepository{pool: pool}
}

func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	if err := fqn.Validate(entity.FQN); err != nil {
		return domain.Entity{}, fmt.Errorf("invalid entity fqn: %w", err)
	}

	tagsJSON, propertiesJSON, err := marshalEntityJSON(&entity)
	if err != nil {
		return domain.Entity{}, err
	}

	entity.Version = 1
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO entities (id, entity_type, fqn, name, display_name, description, owner,
			tags, properties, version, deleted, created_at, updated_at)
		VALUES ($1, $2, $3::ltree, $4, $5, $6, $7, $8, $9, $10, FALSE, $11, $11)`,
		entity.ID, entity.EntityType, entity.FQN, entity.Name, entity.DisplayName,
		entity.Description, entity.Owner, tagsJSON, propertiesJSON, entity.Version, entity.CreatedAt,
	)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to insert entity: %w", err)
	}

	change, err := domain.ComputeChangeDescription(nil, entity.Document(), 0)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := insertVersionRow(ctx, tx, entity, change, domain.ChangeTypeCreated, nil); err != nil {
		return domain.Entity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entity{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entity, nil
}

func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

func (r *entityRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return []domain.Entity{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities by ids: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (r *entityRepository) GetByFQN(ctx context.Context, entityType, fullyQualifiedName string) (domain.Entity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity_type = $1 AND fqn = $2::ltree`,
		entityType, fullyQualifiedName)
	return scanEntity(row)
}

func (r *entityRepository) List(
	ctx context.Context,
	filter *domain.EntityFilter,
	sort *domain.EntitySort,
	limit int,
	offset int,
) ([]domain.Entity, int, error) {
	where, args := buildListWhere(filter)

	var total int
	countQuery := `SELECT count(*) FROM entities` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	query := `SELECT ` + entityColumns + ` FROM entities` + where +
		` ORDER BY ` + orderClause(sort) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	entities, err := scanEntities(rows)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (r *entityRepository) Update(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockEntity(ctx, tx, entity.ID)
	if err != nil {
		return domain.Entity{}, err
	}

	change, err := domain.ComputeChangeDescription(current.Document(), entity.Document(), current.Version)
	if err != nil {
		return domain.Entity{}, err
	}
	if change.IsEmpty() {
		return current, nil
	}

	entity.Version = current.Version + 1
	entity.CreatedAt = current.CreatedAt
	entity.UpdatedAt = time.Now()

	if err := updateEntityRow(ctx, tx, entity); err != nil {
		return domain.Entity{}, err
	}
	if err := insertVersionRow(ctx, tx, entity, change, domain.ChangeTypeUpdated, nil); err != nil {
		return domain.Entity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entity{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entity, nil
}

func (r *entityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE entities SET deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore rewinds an entity to the state captured at toVersion, recorded as a
// new version rather than rewriting history.
func (r *entityRepository) Restore(ctx context.Context, id uuid.UUID, toVersion int64, reason string) (domain.Entity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockEntity(ctx, tx, id)
	if err != nil {
		return domain.Entity{}, err
	}

	var snapshotJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT snapshot FROM entity_versions WHERE entity_id = $1 AND version = $2`,
		id, toVersion,
	).Scan(&snapshotJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, fmt.Errorf("version %d: %w", toVersion, ErrNotFound)
	}
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to load version snapshot: %w", err)
	}

	var restored domain.Entity
	if err := json.Unmarshal(snapshotJSON, &restored); err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode version snapshot: %w", err)
	}

	// Identity and lineage of the record never rewind.
	restored.ID = current.ID
	restored.EntityType = current.EntityType
	restored.FQN = current.FQN
	restored.CreatedAt = current.CreatedAt
	restored.Deleted = false
	restored.Version = current.Version + 1
	restored.UpdatedAt = time.Now()

	change, err := domain.ComputeChangeDescription(current.Document(), restored.Document(), current.Version)
	if err != nil {
		return domain.Entity{}, err
	}

	if err := updateEntityRow(ctx, tx, restored); err != nil {
		return domain.Entity{}, err
	}
	if err := insertVersionRow(ctx, tx, restored, change, domain.ChangeTypeRestored, &reason); err != nil {
		return domain.Entity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entity{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return restored, nil
}

func (r *entityRepository) GetDescendants(ctx context.Context, fullyQualifiedName string) ([]domain.Entity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE fqn <@ $1::ltree AND fqn != $1::ltree AND NOT deleted
		 ORDER BY fqn`, fullyQualifiedName)
	if err != nil {
		return nil, fmt.Errorf("failed to query descendants: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (r *entityRepository) GetChildren(ctx context.Context, fullyQualifiedName string) ([]domain.Entity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE fqn ~ ($1 || '.*{1}')::lquery AND NOT deleted
		 ORDER BY fqn`, fullyQualifiedName)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (r *entityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM entities WHERE NOT deleted`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

func (r *entityRepository) CountByType(ctx context.Context, entityType string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM entities WHERE entity_type = $1 AND NOT deleted`, entityType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities by type: %w", err)
	}
	return count, nil
}

// buildListWhere renders the filter as a WHERE clause with positional args.
func buildListWhere(filter *domain.EntityFilter) (string, []any) {
	conditions := []string{}
	args := []any{}

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter == nil || !filter.IncludeDeleted {
		conditions = append(conditions, "NOT deleted")
	}

	if filter != nil {
		if filter.EntityType != "" {
			conditions = append(conditions, "entity_type = "+arg(filter.EntityType))
		}
		if filter.TextSearch != "" {
			pattern := "%" + filter.TextSearch + "%"
			placeholder := arg(pattern)
			conditions = append(conditions,
				"(name ILIKE "+placeholder+" OR display_name ILIKE "+placeholder+" OR description ILIKE "+placeholder+")")
		}
		for _, pf := range filter.PropertyFilters {
			switch {
			case pf.Exists != nil && *pf.Exists:
				conditions = append(conditions, "properties ? "+arg(pf.Key))
			case pf.Exists != nil:
				conditions = append(conditions, "NOT (properties ? "+arg(pf.Key)+")")
			case len(pf.InArray) > 0:
				conditions = append(conditions, "properties->>"+arg(pf.Key)+" = ANY("+arg(pf.InArray)+")")
			default:
				conditions = append(conditions, "properties->>"+arg(pf.Key)+" = "+arg(pf.Value))
			}
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func orderClause(sort *domain.EntitySort) string {
	column := "updated_at"
	direction := "DESC"

	if sort != nil {
		switch sort.Field {
		case domain.EntitySortFieldCreatedAt:
			column = "created_at"
		case domain.EntitySortFieldUpdatedAt:
			column = "updated_at"
		case domain.EntitySortFieldEntityType:
			column = "entity_type"
		case domain.EntitySortFieldFQN:
			column = "fqn"
		case domain.EntitySortFieldName:
			column = "name"
		case domain.EntitySortFieldVersion:
			column = "version"
		}
		if sort.Direction == domain.SortDirectionAsc {
			direction = "ASC"
		}
	}

	return column + " " + direction
}

func lockEntity(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Entity, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 FOR UPDATE`, id)
	return scanEntity(row)
}

func updateEntityRow(ctx context.Context, tx pgx.Tx, entity domain.Entity) error {
	tagsJSON, propertiesJSON, err := marshalEntityJSON(&entity)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE entities
		SET name = $2, display_name = $3, description = $4, owner = $5,
			tags = $6, properties = $7, version = $8, deleted = $9, updated_at = $10
		WHERE id = $1`,
		entity.ID, entity.Name, entity.DisplayName, entity.Description, entity.Owner,
		tagsJSON, propertiesJSON, entity.Version, entity.Deleted, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	return nil
}

func insertVersionRow(
	ctx context.Context,
	tx pgx.Tx,
	entity domain.Entity,
	change domain.ChangeDescription,
	changeType string,
	reason *string,
) error {
	snapshotJSON, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity snapshot: %w", err)
	}
	changeJSON, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change description: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO entity_versions (id, entity_id, entity_type, fqn, version,
			snapshot, change, change_type, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		uuid.New(), entity.ID, entity.EntityType, entity.FQN, entity.Version,
		snapshotJSON, changeJSON, changeType, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity version: %w", err)
	}
	return nil
}

func marshalEntityJSON(entity *domain.Entity) (tagsJSON, propertiesJSON []byte, err error) {
	if entity.Tags == nil {
		entity.Tags = []domain.TagLabel{}
	}
	tagsJSON, err = json.Marshal(entity.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	propertiesJSON, err = entity.GetPropertiesAsJSONB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return tagsJSON, propertiesJSON, nil
}

func scanEntities(rows pgx.Rows) ([]domain.Entity, error) {
	entities := []domain.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity rows: %w", err)
	}
	return entities, nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var entity domain.Entity
	var tagsJSON, propertiesJSON []byte

	err := row.Scan(
		&entity.ID, &entity.EntityType, &entity.FQN, &entity.Name, &entity.DisplayName,
		&entity.Description, &entity.Owner, &tagsJSON, &propertiesJSON,
		&entity.Version, &entity.Deleted, &entity.CreatedAt, &entity.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, ErrNotFound
	}
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to scan entity row: %w", err)
	}

	if err := json.Unmarshal(tagsJSON, &entity.Tags); err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode entity tags: %w", err)
	}
	properties, err := domain.FromJSONBProperties(propertiesJSON)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode entity properties: %w", err)
	}
	entity.Properties = properties

	return entity, nil
}
