package identity

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("a-long-enough-test-secret-for-hmac")

func TestHasRole(t *testing.T) {
	a := Actor{UserID: "u1", Roles: []string{RoleMember, RoleGM}}
	if !a.HasRole(RoleMember) {
		t.Error("HasRole(member) = false, want true")
	}
	if !a.HasRole(RoleGM) {
		t.Error("HasRole(gm) = false, want true")
	}
	if a.HasRole(RoleAdmin) {
		t.Error("HasRole(admin) = true, want false")
	}
}

func TestIsGM(t *testing.T) {
	tests := []struct {
		roles []string
		want  bool
	}{
		{[]string{RoleMember}, false},
		{[]string{RoleGM}, true},
		{[]string{RoleAdmin}, true},
		{[]string{RoleMember, RoleGM}, true},
		{nil, false},
	}
	for _, tt := range tests {
		a := Actor{UserID: "u1", Roles: tt.roles}
		if got := a.IsGM(); got != tt.want {
			t.Errorf("IsGM() with roles %v = %v, want %v", tt.roles, got, tt.want)
		}
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	actor := Actor{UserID: "user-123", Roles: []string{RoleMember, RoleGM}}

	tokenStr, err := GenerateToken(testSecret, actor, 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := ParseToken(testSecret, tokenStr)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got.UserID != actor.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, actor.UserID)
	}
	if len(got.Roles) != 2 || got.Roles[0] != RoleMember || got.Roles[1] != RoleGM {
		t.Errorf("Roles = %v, want %v", got.Roles, actor.Roles)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tokenStr, err := GenerateToken(testSecret, Actor{UserID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken([]byte("some-other-secret-entirely!!"), tokenStr); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tokenStr, err := GenerateToken(testSecret, Actor{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(testSecret, tokenStr); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken(testSecret, "not.a.token")
	if err == nil {
		t.Fatal("expected error for malformed token")
	}
	if !strings.Contains(err.Error(), "identity:") {
		t.Errorf("error %q should carry identity prefix", err)
	}
}

func TestParseToken_MissingUserID(t *testing.T) {
	tokenStr, err := GenerateToken(testSecret, Actor{Roles: []string{RoleMember}}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(testSecret, tokenStr); err == nil {
		t.Fatal("expected error for token without user_id")
	}
}
