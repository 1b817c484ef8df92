package auth

import (
	"context"
	"testing"
)

func TestWithIdentityAndFromContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{User: "alice", Role: RoleAdmin})

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Identity in context")
	}
	if got.User != "alice" {
		t.Errorf("User = %q, want %q", got.User, "alice")
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, RoleAdmin)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing Identity")
	}
}

func TestUser(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{User: "bob"})
	if User(ctx) != "bob" {
		t.Errorf("User = %q, want bob", User(ctx))
	}
}

func TestUserMissing(t *testing.T) {
	if User(context.Background()) != "" {
		t.Error("expected empty user for anonymous context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithIdentity(context.Background(), Identity{Role: RoleAdmin})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithIdentity(context.Background(), Identity{Role: RoleUser})) {
		t.Error("expected IsAdmin = false for user role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestCanIngest(t *testing.T) {
	for _, tc := range []struct {
		name string
		id   *Identity
		want bool
	}{
		{"anonymous", nil, false},
		{"self", &Identity{User: "alice", Role: RoleUser}, true},
		{"other user", &Identity{User: "bob", Role: RoleUser}, false},
		{"gatherer", &Identity{User: "history", Role: RoleGatherer}, true},
		{"admin", &Identity{User: "root", Role: RoleAdmin}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.id != nil {
				ctx = WithIdentity(ctx, *tc.id)
			}
			if got := CanIngest(ctx, "alice"); got != tc.want {
				t.Errorf("CanIngest = %v, want %v", got, tc.want)
			}
		})
	}
}
