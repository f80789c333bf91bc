package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a single SQLite file (or :memory:).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and applies any
// pending migrations.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// NewMigrator builds a standalone migrator over the embedded migrations for
// the database at path, for manual up/down/version operations. Closing the
// migrator closes the underlying connection.
func NewMigrator(path string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) GetTier(ctx context.Context, userID string) (int, error) {
	var tier int
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM user_respect WHERE user_id = ?`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultTier, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get tier: %w", err)
	}
	return tier, nil
}

func (s *SQLiteStore) SetTier(ctx context.Context, userID string, tier int) error {
	if tier < 1 || tier > 3 {
		return fmt.Errorf("tier %d out of range (1-3)", tier)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_respect (user_id, tier, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(user_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at`,
		userID, tier)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LogMessage(ctx context.Context, rec MessageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_log (message_id, channel_id, community_id, user_id, username, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.MessageID, rec.ChannelID, rec.CommunityID, rec.UserID, rec.Username, rec.Content,
		createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, channelID string, limit int) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, channel_id, community_id, user_id, username, content, created_at
		 FROM message_log WHERE channel_id = ? ORDER BY id DESC LIMIT ?`,
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *SQLiteStore) RecentMessagesByUser(ctx context.Context, userID string, limit int) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, channel_id, community_id, user_id, username, content, created_at
		 FROM message_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query user messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]MessageRecord, error) {
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		var createdAt string
		if err := rows.Scan(&rec.MessageID, &rec.ChannelID, &rec.CommunityID,
			&rec.UserID, &rec.Username, &rec.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Memory(ctx context.Context, userID string) (string, error) {
	var memory string
	err := s.db.QueryRowContext(ctx,
		`SELECT memory FROM user_memory WHERE user_id = ?`, userID).Scan(&memory)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get memory: %w", err)
	}
	return memory, nil
}

func (s *SQLiteStore) SetMemory(ctx context.Context, userID, memory string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_memory (user_id, memory, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(user_id) DO UPDATE SET memory = excluded.memory, updated_at = excluded.updated_at`,
		userID, memory)
	if err != nil {
		return fmt.Errorf("set memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Persona(ctx context.Context, communityID string) (Persona, error) {
	p := Persona{CommunityID: communityID}
	err := s.db.QueryRowContext(ctx,
		`SELECT description, tags FROM community_personas WHERE community_id = ?`,
		communityID).Scan(&p.Description, &p.Tags)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) SetPersona(ctx context.Context, p Persona) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO community_personas (community_id, description, tags, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(community_id) DO UPDATE SET
		   description = excluded.description, tags = excluded.tags, updated_at = excluded.updated_at`,
		p.CommunityID, p.Description, p.Tags)
	if err != nil {
		return fmt.Errorf("set persona: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
