package authz

import (
	"net/http/httptest"
	"testing"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := &Verifier{Secret: []byte("test-secret")}

	tok, err := v.Sign(Identity{UserID: 42, Username: "alice", Role: "admin"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != 42 || id.Username != "alice" || !id.IsAdmin() {
		t.Fatalf("identity = %+v", id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := (&Verifier{Secret: []byte("one")}).Sign(Identity{UserID: 1})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := (&Verifier{Secret: []byte("two")}).Verify(tok); !xerrors.IsKind(err, xerrors.KindInput) {
		t.Fatalf("want input error, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	v := &Verifier{Secret: []byte("s")}
	tok, err := v.Sign(Identity{UserID: 7, Role: "user"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	id, err := v.FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if id.UserID != 7 {
		t.Fatalf("user id = %d", id.UserID)
	}

	bare := httptest.NewRequest("GET", "/", nil)
	if _, err := v.FromRequest(bare); !xerrors.IsKind(err, xerrors.KindInput) {
		t.Fatalf("missing header: %v", err)
	}
}

func TestCapabilityPredicates(t *testing.T) {
	admin := Identity{UserID: 1, Role: "admin"}
	owner := Identity{UserID: 2, Role: "user"}

	if !admin.IsAdmin() || owner.IsAdmin() {
		t.Fatal("IsAdmin predicate wrong")
	}
	if !owner.Owns(2) || owner.Owns(3) {
		t.Fatal("Owns predicate wrong")
	}
}
