package domain

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// EntitySortField enumerates fields that can be sorted when listing entities.
type EntitySortField string

const (
	EntitySortFieldCreatedAt  EntitySortField = "created_at"
	EntitySortFieldUpdatedAt  EntitySortField = "updated_at"
	EntitySortFieldEntityType EntitySortField = "entity_type"
	EntitySortFieldFQN        EntitySortField = "fqn"
	EntitySortFieldName       EntitySortField = "name"
	EntitySortFieldVersion    EntitySortField = "version"
)

// EntitySort captures ordering preferences for entity listings.
type EntitySort struct {
	Field     EntitySortField
	Direction SortDirection
}
