package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the metadata
// store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS contact_file_metadata (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresMetadataStore keeps metadata in the contact_file_metadata table.
type PostgresMetadataStore struct {
	db DBTX
}

// NewPostgresMetadataStore uses db for all queries. Call EnsureSchema once
// at startup.
func NewPostgresMetadataStore(db DBTX) *PostgresMetadataStore {
	return &PostgresMetadataStore{db: db}
}

// EnsureSchema creates the metadata table if it does not exist.
func (s *PostgresMetadataStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, metadataSchema); err != nil {
		return fmt.Errorf("create contact_file_metadata: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format(metadataTimeLayout)
}

func (s *PostgresMetadataStore) Get(ctx context.Context, name string) (Metadata, bool, error) {
	var (
		m                Metadata
		created, updated time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT display_name, description, created_at, updated_at
		   FROM contact_file_metadata WHERE name = $1`, name,
	).Scan(&m.DisplayName, &m.Description, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("get metadata %q: %w", name, err)
	}
	m.CreatedAt = formatTimestamp(created)
	m.UpdatedAt = formatTimestamp(updated)
	return m, true, nil
}

func (s *PostgresMetadataStore) All(ctx context.Context) (map[string]Metadata, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, display_name, description, created_at, updated_at FROM contact_file_metadata`)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	out := map[string]Metadata{}
	for rows.Next() {
		var (
			name             string
			m                Metadata
			created, updated time.Time
		)
		if err := rows.Scan(&name, &m.DisplayName, &m.Description, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		m.CreatedAt = formatTimestamp(created)
		m.UpdatedAt = formatTimestamp(updated)
		out[name] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	return out, nil
}

func (s *PostgresMetadataStore) Set(ctx context.Context, name, displayName, description string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO contact_file_metadata (name, display_name, description)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE
		    SET display_name = EXCLUDED.display_name,
		        description  = EXCLUDED.description,
		        updated_at   = now()`,
		name,
		core.SanitizeMetadataText(displayName, core.MaxDisplayNameLen),
		core.SanitizeMetadataText(description, core.MaxDescriptionLen),
	)
	if err != nil {
		return errMetadataSave.Wrap(err)
	}
	return nil
}

func (s *PostgresMetadataStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM contact_file_metadata WHERE name = $1`, name); err != nil {
		return errMetadataSave.Wrap(err)
	}
	return nil
}

func (s *PostgresMetadataStore) Prune(ctx context.Context, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM contact_file_metadata WHERE NOT (name = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune metadata: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
