package domain

import (
	"time"

	"github.com/google/uuid"
)

// Change types recorded alongside entity versions.
const (
	ChangeTypeCreated  = "CREATED"
	ChangeTypeUpdated  = "UPDATED"
	ChangeTypeDeleted  = "DELETED"
	ChangeTypeRestored = "RESTORED"
)

// EntityVersion captures a historical snapshot of an entity version together
// with the change description that produced it.
type EntityVersion struct {
	ID         uuid.UUID         `json:"id"`
	EntityID   uuid.UUID         `json:"entityId"`
	EntityType string            `json:"entityType"`
	FQN        string            `json:"fullyQualifiedName"`
	Version    int64             `json:"version"`
	Snapshot   map[string]any    `json:"snapshot"` // entity record as of this version
	Change     ChangeDescription `json:"changeDescription"`
	ChangeType string            `json:"changeType"`
	ChangedAt  time.Time         `json:"changedAt"`
	Reason     *string           `json:"reason,omitempty"`
}
