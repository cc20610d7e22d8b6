package auth

import (
	"context"
	"testing"
	"time"

	"ledger-exchange/apperr"
	"ledger-exchange/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap store: %v", err)
	}
	return st
}

func TestSignupAndAuthenticate(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", time.Hour, 1000, 100)
	ctx := context.Background()

	participantID, err := svc.Signup(ctx, "rik", "foo123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if participantID == 0 {
		t.Fatalf("expected a non-zero participant id")
	}

	acct, err := st.GetAccount(ctx, participantID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acct.Balance != 1000 || acct.Stock != 100 {
		t.Errorf("seeded account = %+v, want {1000 100}", acct)
	}

	token, err := svc.Authenticate(ctx, "rik", "foo123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty token")
	}

	principal, err := svc.ResolvePrincipal(ctx, token)
	if err != nil {
		t.Fatalf("resolve principal: %v", err)
	}
	if principal.ParticipantID != participantID || principal.Name != "rik" {
		t.Errorf("principal = %+v, want {%d rik}", principal, participantID)
	}
}

func TestSignup_DuplicateNameConflicts(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", time.Hour, 1000, 100)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "rik", "foo123"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(ctx, "rik", "different-password")
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second signup with same name = %v, want apperr.Conflict", err)
	}
}

func TestAuthenticate_UnknownNameAndWrongPasswordAreIndistinguishable(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", time.Hour, 1000, 100)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "rik", "foo123"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, unknownErr := svc.Authenticate(ctx, "ghost", "whatever")
	_, wrongPassErr := svc.Authenticate(ctx, "rik", "not-the-password")

	if apperr.KindOf(unknownErr) != apperr.BadCredentials {
		t.Errorf("unknown name = %v, want apperr.BadCredentials", unknownErr)
	}
	if apperr.KindOf(wrongPassErr) != apperr.BadCredentials {
		t.Errorf("wrong password = %v, want apperr.BadCredentials", wrongPassErr)
	}
	if unknownErr.Error() != wrongPassErr.Error() {
		t.Errorf("messages differ (%q vs %q); must be uniform to avoid user enumeration", unknownErr.Error(), wrongPassErr.Error())
	}
}

func TestResolvePrincipal_RejectsExpiredToken(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", -time.Hour, 1000, 100)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "rik", "foo123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, err := svc.Authenticate(ctx, "rik", "foo123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	_, err = svc.ResolvePrincipal(ctx, token)
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("expired token resolved as %v, want apperr.Unauthorized", err)
	}
}

func TestResolvePrincipal_RejectsTokenFromAnotherSecret(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", time.Hour, 1000, 100)
	other := New(st, "different-secret", time.Hour, 1000, 100)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "rik", "foo123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, err := svc.Authenticate(ctx, "rik", "foo123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	_, err = other.ResolvePrincipal(ctx, token)
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("token signed by a different secret resolved as %v, want apperr.Unauthorized", err)
	}
}

func TestResolvePrincipal_RejectsGarbageToken(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, "test-secret", time.Hour, 1000, 100)

	_, err := svc.ResolvePrincipal(context.Background(), "not-a-jwt")
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("garbage token resolved as %v, want apperr.Unauthorized", err)
	}
}
