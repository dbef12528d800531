package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wireroom/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IdentityStore implementation ====

const identityColumns = `id, username, avatar, is_online, last_login, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (*store.Identity, error) {
	var (
		ident     store.Identity
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&ident.ID,
		&ident.Username,
		&ident.Avatar,
		&ident.IsOnline,
		&lastLogin,
		&ident.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		ident.LastLogin = &t
	}
	return &ident, nil
}

// CreateIdentity inserts a new identity.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, username, avatar string) (*store.Identity, error) {
	query := `
		INSERT INTO users (username, avatar)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, avatar)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, store.ErrIdentityExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetIdentityByID(ctx, id)
}

// GetIdentityByID retrieves an identity by ID.
func (s *SQLiteStore) GetIdentityByID(ctx context.Context, id int64) (*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM users WHERE id = ?`
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return ident, nil
}

// GetIdentityByUsername retrieves an identity by username.
func (s *SQLiteStore) GetIdentityByUsername(ctx context.Context, username string) (*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM users WHERE username = ?`
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return ident, nil
}

// ListIdentities returns every identity ordered by creation.
func (s *SQLiteStore) ListIdentities(ctx context.Context) ([]*store.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM users ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var identities []*store.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		identities = append(identities, ident)
	}
	return identities, rows.Err()
}

// SetOnline updates the online flag.
func (s *SQLiteStore) SetOnline(ctx context.Context, id int64, online bool) error {
	var (
		result sql.Result
		err    error
	)
	if online {
		result, err = s.db.ExecContext(ctx, `UPDATE users SET is_online = 1, last_login = ? WHERE id = ?`, time.Now().UTC(), id)
	} else {
		result, err = s.db.ExecContext(ctx, `UPDATE users SET is_online = 0 WHERE id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("update online: %w", err)
	}
	return requireAffected(result, id)
}

// ResetOnline marks every identity offline.
func (s *SQLiteStore) ResetOnline(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET is_online = 0 WHERE is_online = 1`); err != nil {
		return fmt.Errorf("reset online: %w", err)
	}
	return nil
}

// UpdateAvatar replaces the avatar reference.
func (s *SQLiteStore) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET avatar = ? WHERE id = ?`, avatar, id)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return requireAffected(result, id)
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== EventStore implementation ====

// AppendEvent persists a chat event with a caller-assigned seq_id.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *store.ChatEvent) error {
	query := `
		INSERT INTO chat_events (seq_id, identity_id, body, kind, command_result, client_ts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var result any
	if len(ev.Result) > 0 {
		result = string(ev.Result)
	}
	if _, err := s.db.ExecContext(ctx, query,
		ev.Seq, ev.IdentityID, ev.Body, ev.Kind, result, ev.ClientTS, ev.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert chat event: %w", err)
	}
	return nil
}

// LastSeq returns the highest stored seq_id.
func (s *SQLiteStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq_id), 0) FROM chat_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}

// TailEvents returns the n most recent events, oldest first.
func (s *SQLiteStore) TailEvents(ctx context.Context, n int) ([]*store.ChatEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `
		SELECT e.seq_id, e.identity_id, COALESCE(u.username, ''), e.body, e.kind,
		       COALESCE(e.command_result, ''), e.client_ts, e.created_at
		FROM chat_events e
		LEFT JOIN users u ON u.id = e.identity_id
		ORDER BY e.seq_id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query chat events: %w", err)
	}
	defer rows.Close()

	var events []*store.ChatEvent
	for rows.Next() {
		var (
			ev     store.ChatEvent
			result string
		)
		if err := rows.Scan(&ev.Seq, &ev.IdentityID, &ev.DisplayName, &ev.Body, &ev.Kind, &result, &ev.ClientTS, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat event: %w", err)
		}
		if result != "" {
			ev.Result = json.RawMessage(result)
		}
		events = append(events, &ev)
	}

	// Reverse to get chronological order
	for i := range len(events) / 2 {
		events[i], events[len(events)-1-i] = events[len(events)-1-i], events[i]
	}

	return events, rows.Err()
}

// ==== ActivityStore implementation ====

// RecordActivity stores an activity record.
func (s *SQLiteStore) RecordActivity(ctx context.Context, a *store.Activity) error {
	var data any
	if len(a.Data) > 0 {
		data = string(a.Data)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO user_activities (identity_id, activity_type, activity_data, created_at) VALUES (?, ?, ?, ?)`,
		a.IdentityID, string(a.Type), data, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// ListActivities lists the most recent activities of an identity, newest first.
func (s *SQLiteStore) ListActivities(ctx context.Context, identityID int64, limit int) ([]*store.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, activity_type, COALESCE(activity_data, ''), created_at
		FROM user_activities
		WHERE identity_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []*store.Activity
	for rows.Next() {
		var (
			a    store.Activity
			typ  string
			data string
		)
		if err := rows.Scan(&a.ID, &a.IdentityID, &typ, &data, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = store.ActivityType(typ)
		if data != "" {
			a.Data = json.RawMessage(data)
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}
