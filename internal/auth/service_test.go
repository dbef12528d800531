package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wireroom/internal/store"
	"github.com/vovakirdan/wireroom/internal/store/sqlite"
)

func newTestAuthService(t *testing.T, allowPlain bool) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig, allowPlain)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t, true)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "has space", "@alice", "abcdefghijklmnopqrstuvwxyz0123456"} {
		if _, _, err := svc.Register(ctx, name, ""); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("Register(%q): expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestRegister_TrimsUsernameAndRejectsDuplicate(t *testing.T) {
	svc := newTestAuthService(t, true)
	ctx := context.Background()

	identity, token, err := svc.Register(ctx, " 小明 ", "avatars/1.png")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if identity.Username != "小明" {
		t.Fatalf("expected trimmed username, got %q", identity.Username)
	}

	if _, _, err := svc.Register(ctx, "小明", ""); !errors.Is(err, store.ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestResolve_TokenAndPlainUsername(t *testing.T) {
	svc := newTestAuthService(t, true)
	ctx := context.Background()

	alice, token, err := svc.Register(ctx, "alice", "a.png")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("expected identity %d, got %d", alice.ID, got.ID)
	}

	got, err = svc.Resolve(ctx, " alice ")
	if err != nil {
		t.Fatalf("resolve username: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("expected identity %d, got %d", alice.ID, got.ID)
	}

	for _, ref := range []string{"", "bob", "a.b.c", token + "x"} {
		if _, err := svc.Resolve(ctx, ref); !errors.Is(err, ErrUnknownIdentity) {
			t.Fatalf("Resolve(%q): expected ErrUnknownIdentity, got %v", ref, err)
		}
	}
}

func TestResolve_DottedUsername(t *testing.T) {
	ctx := context.Background()

	svc := newTestAuthService(t, true)
	tolkien, _, err := svc.Register(ctx, "j.r.r", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := svc.Resolve(ctx, "j.r.r")
	if err != nil {
		t.Fatalf("resolve dotted username: %v", err)
	}
	if got.ID != tolkien.ID {
		t.Fatalf("expected identity %d, got %d", tolkien.ID, got.ID)
	}

	strict := newTestAuthService(t, false)
	if _, _, err := strict.Register(ctx, "j.r.r", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := strict.Resolve(ctx, "j.r.r"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity without plain references, got %v", err)
	}
}

func TestResolve_PlainUsernameDisabled(t *testing.T) {
	svc := newTestAuthService(t, false)
	ctx := context.Background()

	_, token, err := svc.Register(ctx, "alice", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Resolve(ctx, "alice"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity for plain username, got %v", err)
	}
	if _, err := svc.Resolve(ctx, token); err != nil {
		t.Fatalf("expected token to resolve, got %v", err)
	}
}

func TestValidateToken_RejectsForeignSecret(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("one"), Issuer: "test", Audience: "test", TTL: time.Hour}
	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.IdentityID != 7 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other := *cfg
	other.Secret = []byte("two")
	if _, err := ValidateToken(&other, token); err == nil {
		t.Fatalf("expected error for foreign secret")
	}

	expired := *cfg
	expired.TTL = -time.Minute
	stale, err := GenerateToken(&expired, 7, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, stale); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestPresenceFlags(t *testing.T) {
	svc := newTestAuthService(t, true)
	ctx := context.Background()

	alice, _, err := svc.Register(ctx, "alice", "a.png")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetOnline(ctx, alice.ID, true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := svc.UpdateAvatar(ctx, alice.ID, "b.png"); err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	avatar, err := svc.Avatar(ctx, alice.ID)
	if err != nil || avatar != "b.png" {
		t.Fatalf("expected avatar b.png, got %q (%v)", avatar, err)
	}

	if err := svc.ResetPresence(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].IsOnline {
		t.Fatalf("expected one offline identity, got %+v", list)
	}
}
