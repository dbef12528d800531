package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIdentityExists is returned when creating an identity with a taken username.
	ErrIdentityExists = errors.New("identity already exists")
)

// Identity is a registered chat participant.
type Identity struct {
	ID        int64
	Username  string
	Avatar    string
	IsOnline  bool
	LastLogin *time.Time
	CreatedAt time.Time
}

// ChatEvent is one entry of the append-only chat log.
// Seq is assigned by the history log at append time.
type ChatEvent struct {
	Seq         int64           `json:"seq_id"`
	IdentityID  int64           `json:"identity_id"`
	DisplayName string          `json:"display_name"`
	Body        string          `json:"body"`
	Kind        string          `json:"kind"`
	Result      json.RawMessage `json:"command_result,omitempty"`
	ClientTS    int64           `json:"client_ts,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActivityType enumerates recorded user activities.
type ActivityType string

const (
	ActivityLogin         ActivityType = "login"
	ActivityLogout        ActivityType = "logout"
	ActivityMoviePlay     ActivityType = "movie_play"
	ActivityAIChat        ActivityType = "ai_chat"
	ActivityWeatherSearch ActivityType = "weather_search"
	ActivityNewsSearch    ActivityType = "news_search"
	ActivityMusicPlay     ActivityType = "music_play"
)

// Activity is an audit record of something a user did.
type Activity struct {
	ID         int64
	IdentityID int64
	Type       ActivityType
	Data       json.RawMessage
	CreatedAt  time.Time
}

// IdentityStore handles identity persistence.
type IdentityStore interface {
	// CreateIdentity inserts a new identity. Returns ErrIdentityExists on a duplicate username.
	CreateIdentity(ctx context.Context, username, avatar string) (*Identity, error)

	// GetIdentityByID retrieves an identity by ID.
	GetIdentityByID(ctx context.Context, id int64) (*Identity, error)

	// GetIdentityByUsername retrieves an identity by username.
	GetIdentityByUsername(ctx context.Context, username string) (*Identity, error)

	// ListIdentities returns every identity in creation order.
	ListIdentities(ctx context.Context) ([]*Identity, error)

	// SetOnline updates the durable online flag. Going online also stamps last_login.
	SetOnline(ctx context.Context, id int64, online bool) error

	// ResetOnline marks every identity offline.
	ResetOnline(ctx context.Context) error

	// UpdateAvatar replaces the avatar reference of an identity.
	UpdateAvatar(ctx context.Context, id int64, avatar string) error
}

// EventStore persists chat events. Callers assign Seq.
type EventStore interface {
	// AppendEvent stores an event whose Seq is already set.
	AppendEvent(ctx context.Context, ev *ChatEvent) error

	// LastSeq returns the highest stored Seq, or 0 for an empty log.
	LastSeq(ctx context.Context) (int64, error)

	// TailEvents returns up to n most recent events, oldest first.
	TailEvents(ctx context.Context, n int) ([]*ChatEvent, error)
}

// ActivityStore records user activities.
type ActivityStore interface {
	RecordActivity(ctx context.Context, a *Activity) error
	ListActivities(ctx context.Context, identityID int64, limit int) ([]*Activity, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IdentityStore
	EventStore
	ActivityStore

	// Close closes the underlying database connection.
	Close() error
}
