package auth

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Operation is a capability the UI gates on per entity type.
type Operation string

const (
	OpView            Operation = "ViewAll"
	OpCreate          Operation = "Create"
	OpEditAll         Operation = "EditAll"
	OpEditDescription Operation = "EditDescription"
	OpEditTags        Operation = "EditTags"
	OpDelete          Operation = "Delete"
	OpRestore         Operation = "Restore"
	OpExport          Operation = "Export"
)

// CapabilityMap maps entity type (or "*") to the operations allowed on it.
type CapabilityMap map[string]map[Operation]bool

// Allows looks up an operation, falling back to the wildcard entity type.
func (m CapabilityMap) Allows(op Operation, entityType string) bool {
	if ops, ok := m[entityType]; ok && ops[op] {
		return true
	}
	if ops, ok := m["*"]; ok && ops[op] {
		return true
	}
	return false
}

// CapabilityResolver produces the capability map for a principal. Resolution
// may be expensive (policy store lookups), so results are cached.
type CapabilityResolver interface {
	Resolve(ctx context.Context, principal Principal) (CapabilityMap, error)
}

// Checker answers capability questions, caching per-principal maps in an LRU
// so repeated permission-gated requests do not re-resolve policies.
type Checker struct {
	resolver CapabilityResolver
	cache    *lru.Cache[string, CapabilityMap]
}

// NewChecker creates a capability checker with the given cache size.
func NewChecker(resolver CapabilityResolver, cacheSize int) (*Checker, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, CapabilityMap](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create capability cache: %w", err)
	}
	return &Checker{resolver: resolver, cache: cache}, nil
}

// Allows reports whether the principal may perform op on entityType.
// Admins bypass capability resolution entirely.
func (c *Checker) Allows(ctx context.Context, principal Principal, op Operation, entityType string) (bool, error) {
	if principal.IsAdmin {
		return true, nil
	}

	capabilities, ok := c.cache.Get(principal.Name)
	if !ok {
		resolved, err := c.resolver.Resolve(ctx, principal)
		if err != nil {
			return false, err
		}
		capabilities = resolved
		c.cache.Add(principal.Name, capabilities)
	}

	return capabilities.Allows(op, entityType), nil
}

// Invalidate drops a principal's cached capabilities, e.g. after a role change.
func (c *Checker) Invalidate(principalName string) {
	c.cache.Remove(principalName)
}

// RoleCapabilityResolver derives capabilities from a static role table.
type RoleCapabilityResolver struct {
	roleGrants map[string][]Operation
}

// NewRoleCapabilityResolver creates the default role-based resolver.
func NewRoleCapabilityResolver() *RoleCapabilityResolver {
	return &RoleCapabilityResolver{
		roleGrants: map[string][]Operation{
			"DataConsumer": {OpView, OpExport},
			"DataSteward":  {OpView, OpExport, OpEditDescription, OpEditTags},
			"DataOwner":    {OpView, OpExport, OpCreate, OpEditAll, OpEditDescription, OpEditTags, OpDelete, OpRestore},
		},
	}
}

// Resolve builds a wildcard capability map from the principal's roles.
func (r *RoleCapabilityResolver) Resolve(_ context.Context, principal Principal) (CapabilityMap, error) {
	ops := map[Operation]bool{}
	for _, role := range principal.Roles {
		for _, op := range r.roleGrants[role] {
			ops[op] = true
		}
	}
	return CapabilityMap{"*": ops}, nil
}
