package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/metacat-io/metacat/pkg/fqn"
)

// Entity types known to the catalog.
const (
	EntityTypeTable        = "table"
	EntityTypeTopic        = "topic"
	EntityTypeDashboard    = "dashboard"
	EntityTypePipeline     = "pipeline"
	EntityTypeGlossaryTerm = "glossaryTerm"
	EntityTypeDomain       = "domain"
	EntityTypeTag          = "tag"
)

// TagLabel is a classification or glossary tag applied to an entity.
type TagLabel struct {
	TagFQN string `json:"tagFQN"`
	Source string `json:"source"` // "Classification" or "Glossary"
}

// Entity represents a catalog asset addressed by a dotted FQN.
type Entity struct {
	ID          uuid.UUID      `json:"id"`
	EntityType  string         `json:"entityType"`
	FQN         string         `json:"fullyQualifiedName"` // ltree path as string
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Tags        []TagLabel     `json:"tags"`
	Properties  map[string]any `json:"properties"`
	Version     int64          `json:"version"`
	Deleted     bool           `json:"deleted"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewEntity creates a new entity with immutable pattern
func NewEntity(entityType, fullyQualifiedName, name string, properties map[string]any) Entity {
	now := time.Now()
	return Entity{
		ID:         uuid.New(),
		EntityType: entityType,
		FQN:        fullyQualifiedName,
		Name:       name,
		Tags:       []TagLabel{},
		Properties: copyProperties(properties),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithDescription returns a new entity with an updated description
func (e Entity) WithDescription(description string) Entity {
	out := e.clone()
	out.Description = description
	out.UpdatedAt = time.Now()
	return out
}

// WithDisplayName returns a new entity with an updated display name
func (e Entity) WithDisplayName(displayName string) Entity {
	out := e.clone()
	out.DisplayName = displayName
	out.UpdatedAt = time.Now()
	return out
}

// WithOwner returns a new entity with an updated owner
func (e Entity) WithOwner(owner string) Entity {
	out := e.clone()
	out.Owner = owner
	out.UpdatedAt = time.Now()
	return out
}

// WithTags returns a new entity with the tag set replaced
func (e Entity) WithTags(tags []TagLabel) Entity {
	out := e.clone()
	out.Tags = copyTags(tags)
	out.UpdatedAt = time.Now()
	return out
}

// WithProperty returns a new entity with an added/updated property
func (e Entity) WithProperty(key string, value any) Entity {
	out := e.clone()
	out.Properties[key] = value
	out.UpdatedAt = time.Now()
	return out
}

// WithoutProperty returns a new entity without the specified property
func (e Entity) WithoutProperty(key string) Entity {
	out := e.clone()
	delete(out.Properties, key)
	out.UpdatedAt = time.Now()
	return out
}

// WithProperties returns a new entity with properties replaced
func (e Entity) WithProperties(properties map[string]any) Entity {
	out := e.clone()
	out.Properties = copyProperties(properties)
	out.UpdatedAt = time.Now()
	return out
}

func (e Entity) clone() Entity {
	out := e
	out.Tags = copyTags(e.Tags)
	out.Properties = copyProperties(e.Properties)
	return out
}

// GetPropertiesAsJSONB marshals properties for JSONB storage.
func (e *Entity) GetPropertiesAsJSONB() (json.RawMessage, error) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return json.Marshal(e.Properties)
}

// FromJSONBProperties creates a properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	var properties map[string]any
	err := json.Unmarshal(propertiesJSON, &properties)
	return properties, err
}

// Document flattens the entity into the field map used for change tracking
// and search indexing. Tag labels are projected as their FQNs so tag edits
// show up under a single "tags" field.
func (e Entity) Document() map[string]any {
	doc := map[string]any{
		"name":        e.Name,
		"displayName": e.DisplayName,
		"description": e.Description,
		"owner":       e.Owner,
	}

	if len(e.Tags) > 0 {
		tags := make([]any, len(e.Tags))
		for i, tag := range e.Tags {
			tags[i] = tag.TagFQN
		}
		doc["tags"] = tags
	}

	for key, value := range e.Properties {
		doc[key] = value
	}

	return doc
}

// ParentFQN returns the FQN of the containing asset ("" for roots).
func (e Entity) ParentFQN() string {
	return fqn.Parent(e.FQN)
}

// IsDescendantOf checks if this entity lives under the given FQN.
func (e Entity) IsDescendantOf(ancestor string) bool {
	return fqn.IsAncestor(ancestor, e.FQN)
}

func copyTags(tags []TagLabel) []TagLabel {
	out := make([]TagLabel, len(tags))
	copy(out, tags)
	return out
}

// copyProperties creates a copy of the properties map to ensure immutability
func copyProperties(properties map[string]any) map[string]any {
	newProperties := make(map[string]any, len(properties))
	for k, v := range properties {
		newProperties[k] = v
	}
	return newProperties
}
