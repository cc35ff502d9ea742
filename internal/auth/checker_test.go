package auth

import (
	"context"
	"testing"
)

type countingResolver struct {
	calls        int
	capabilities CapabilityMap
}

func (r *countingResolver) Resolve(_ context.Context, _ Principal) (CapabilityMap, error) {
	r.calls++
	return r.capabilities, nil
}

func TestCapabilityMapWildcardFallback(t *testing.T) {
	m := CapabilityMap{
		"*":     {OpView: true},
		"table": {OpEditTags: true},
	}

	if !m.Allows(OpView, "topic") {
		t.Errorf("wildcard grant must cover every entity type")
	}
	if !m.Allows(OpEditTags, "table") {
		t.Errorf("entity-scoped grant must apply")
	}
	if m.Allows(OpEditTags, "topic") {
		t.Errorf("entity-scoped grant must not leak to other types")
	}
	if m.Allows(OpDelete, "table") {
		t.Errorf("ungranted operation must be denied")
	}
}

func TestCheckerAdminBypassesResolution(t *testing.T) {
	resolver := &countingResolver{capabilities: CapabilityMap{}}
	checker, err := NewChecker(resolver, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	allowed, err := checker.Allows(context.Background(), Principal{Name: "root", IsAdmin: true}, OpDelete, "table")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("admin must be allowed everything")
	}
	if resolver.calls != 0 {
		t.Errorf("admin check must not resolve policies, got %d calls", resolver.calls)
	}
}

func TestCheckerCachesPerPrincipal(t *testing.T) {
	resolver := &countingResolver{
		capabilities: CapabilityMap{"*": {OpView: true}},
	}
	checker, err := NewChecker(resolver, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	principal := Principal{Name: "alice", Roles: []string{"DataConsumer"}}
	for i := 0; i < 3; i++ {
		allowed, err := checker.Allows(context.Background(), principal, OpView, "table")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("expected view to be allowed")
		}
	}
	if resolver.calls != 1 {
		t.Errorf("expected a single resolution, got %d", resolver.calls)
	}

	checker.Invalidate("alice")
	if _, err := checker.Allows(context.Background(), principal, OpView, "table"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.calls != 2 {
		t.Errorf("expected re-resolution after invalidation, got %d calls", resolver.calls)
	}
}

func TestRoleCapabilityResolverGrants(t *testing.T) {
	resolver := NewRoleCapabilityResolver()

	cases := []struct {
		role    string
		op      Operation
		allowed bool
	}{
		{"DataConsumer", OpView, true},
		{"DataConsumer", OpEditTags, false},
		{"DataSteward", OpEditDescription, true},
		{"DataSteward", OpDelete, false},
		{"DataOwner", OpDelete, true},
		{"DataOwner", OpRestore, true},
	}
	for _, tc := range cases {
		capabilities, err := resolver.Resolve(context.Background(), Principal{Name: "p", Roles: []string{tc.role}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := capabilities.Allows(tc.op, "table"); got != tc.allowed {
			t.Errorf("%s %s: expected %v, got %v", tc.role, tc.op, tc.allowed, got)
		}
	}

	capabilities, err := resolver.Resolve(context.Background(), Principal{Name: "norole"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capabilities.Allows(OpView, "table") {
		t.Errorf("a principal without roles must have no capabilities")
	}
}
