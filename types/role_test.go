package types

import "testing"

func TestHasRole(t *testing.T) {
	cases := []struct {
		name     string
		actual   Role
		required Role
		want     bool
	}{
		{"equal roles", RolePlayer, RolePlayer, true},
		{"admin outranks moderator", RoleAdmin, RoleModerator, true},
		{"moderator does not reach admin", RoleModerator, RoleAdmin, false},
		{"superadmin outranks everything", RoleSuperadmin, RoleAdmin, true},
		{"vip outranks player", RoleVIP, RolePlayer, true},
		{"player does not reach vip", RolePlayer, RoleVIP, false},
		{"unknown actual satisfies nothing", Role("unknown"), RolePlayer, false},
		{"unknown required is unsatisfiable", RoleSuperadmin, Role("unknown"), false},
		{"both unknown", Role("x"), Role("y"), false},
		{"empty actual", Role(""), RolePlayer, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasRole(tc.actual, tc.required); got != tc.want {
				t.Fatalf("HasRole(%q, %q) = %v, want %v", tc.actual, tc.required, got, tc.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RolePlayer, RoleVIP, RoleModerator, RoleAdmin, RoleSuperadmin} {
		if !role.Valid() {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	if Role("owner").Valid() {
		t.Fatal("expected unknown role to be invalid")
	}
}
