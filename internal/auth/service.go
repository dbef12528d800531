package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wireroom/internal/store"
)

var (
	// ErrUnknownIdentity is returned when an identity reference does not resolve.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrInvalidUsername is returned when a username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
)

const maxUsernameRunes = 32

// Service is the identity collaborator of the chat core: it resolves join references
// and maintains the durable online flag and avatar.
type Service struct {
	store      store.IdentityStore
	jwtConfig  *JWTConfig
	allowPlain bool
}

// NewService creates a new identity service. With allowPlain set, a bare username is
// accepted as identity reference in addition to signed join tokens.
func NewService(identityStore store.IdentityStore, jwtConfig *JWTConfig, allowPlain bool) *Service {
	return &Service{
		store:      identityStore,
		jwtConfig:  jwtConfig,
		allowPlain: allowPlain,
	}
}

// Register creates an identity and returns it together with a join token.
func (s *Service) Register(ctx context.Context, username, avatar string) (*store.Identity, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameRunes || strings.ContainsAny(username, " \t\r\n@") {
		return nil, "", ErrInvalidUsername
	}

	identity, err := s.store.CreateIdentity(ctx, username, strings.TrimSpace(avatar))
	if err != nil {
		return nil, "", fmt.Errorf("create identity: %w", err)
	}

	token, err := s.IssueToken(identity)
	if err != nil {
		return nil, "", err
	}
	return identity, token, nil
}

// IssueToken signs a join token for identity.
func (s *Service) IssueToken(identity *store.Identity) (string, error) {
	token, err := GenerateToken(s.jwtConfig, identity.ID, identity.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a join token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// Resolve maps an identity reference to a stored identity. Returns ErrUnknownIdentity
// when the reference is malformed, expired, or names no identity.
func (s *Service) Resolve(ctx context.Context, ref string) (*store.Identity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrUnknownIdentity
	}

	if looksLikeToken(ref) {
		claims, err := ValidateToken(s.jwtConfig, ref)
		if err == nil {
			return s.lookup(s.store.GetIdentityByID(ctx, claims.IdentityID))
		}
		// Usernames such as "j.r.r" have the shape of a token.
		if !s.allowPlain {
			return nil, fmt.Errorf("%w: %v", ErrUnknownIdentity, err)
		}
	}

	if !s.allowPlain {
		return nil, ErrUnknownIdentity
	}
	return s.lookup(s.store.GetIdentityByUsername(ctx, ref))
}

func (s *Service) lookup(identity *store.Identity, err error) (*store.Identity, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	return identity, nil
}

// SetOnline updates the durable online flag.
func (s *Service) SetOnline(ctx context.Context, identityID int64, online bool) error {
	return s.store.SetOnline(ctx, identityID, online)
}

// Get returns the identity with the given id.
func (s *Service) Get(ctx context.Context, identityID int64) (*store.Identity, error) {
	return s.store.GetIdentityByID(ctx, identityID)
}

// Avatar returns the avatar reference of an identity.
func (s *Service) Avatar(ctx context.Context, identityID int64) (string, error) {
	identity, err := s.store.GetIdentityByID(ctx, identityID)
	if err != nil {
		return "", err
	}
	return identity.Avatar, nil
}

// UpdateAvatar replaces the avatar reference of an identity.
func (s *Service) UpdateAvatar(ctx context.Context, identityID int64, avatar string) error {
	return s.store.UpdateAvatar(ctx, identityID, strings.TrimSpace(avatar))
}

// List returns all known identities in creation order.
func (s *Service) List(ctx context.Context) ([]*store.Identity, error) {
	return s.store.ListIdentities(ctx)
}

// ResetPresence marks every identity offline. Called once on startup, before any connection
// is accepted.
func (s *Service) ResetPresence(ctx context.Context) error {
	return s.store.ResetOnline(ctx)
}

func looksLikeToken(ref string) bool {
	return strings.Count(ref, ".") == 2 && !strings.ContainsAny(ref, " \t")
}
