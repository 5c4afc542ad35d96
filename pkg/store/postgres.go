package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subtexthq/powermap/pkg/model"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and runs migrations.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS players (
			tenant_id       TEXT NOT NULL,
			id              TEXT NOT NULL,
			name            TEXT NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			influence_level INT  NOT NULL,
			status          TEXT NOT NULL,
			notes           JSONB,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			tenant_id      TEXT NOT NULL,
			id             TEXT NOT NULL,
			from_player_id TEXT NOT NULL,
			to_player_id   TEXT NOT NULL,
			kind           TEXT NOT NULL,
			type           TEXT NOT NULL DEFAULT '',
			strength       INT  NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS relationships_pair
			ON relationships (tenant_id, from_player_id, to_player_id, kind)`,
		`CREATE TABLE IF NOT EXISTS communication_events (
			tenant_id    TEXT NOT NULL,
			dedup_key    TEXT NOT NULL,
			source_type  TEXT NOT NULL,
			participants TEXT[] NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			weight_hint  DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (tenant_id, dedup_key)
		)`,
		`CREATE INDEX IF NOT EXISTS communication_events_ts
			ON communication_events (tenant_id, ts)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func marshalNotes(notes *model.EncryptedField) ([]byte, error) {
	if notes == nil {
		return nil, nil
	}
	return json.Marshal(notes)
}

func (s *Postgres) CreatePlayer(ctx context.Context, p *model.Player) error {
	notesJSON, err := marshalNotes(p.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
		INSERT INTO players (tenant_id, id, name, title, influence_level, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.pool.Exec(ctx, query,
		p.TenantID, p.ID, p.Name, p.Title, p.InfluenceLevel, p.Status, notesJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrPlayerExists, p.ID)
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	p := &model.Player{}
	var notesJSON []byte
	err := row.Scan(&p.TenantID, &p.ID, &p.Name, &p.Title, &p.InfluenceLevel, &p.Status, &notesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(notesJSON) > 0 {
		p.Notes = &model.EncryptedField{}
		if err := json.Unmarshal(notesJSON, p.Notes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
	}
	return p, nil
}

const playerColumns = `tenant_id, id, name, title, influence_level, status, notes, created_at, updated_at`

func (s *Postgres) GetPlayer(ctx context.Context, tenantID, playerID string) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE tenant_id = $1 AND id = $2`
	p, err := scanPlayer(s.pool.QueryRow(ctx, query, tenantID, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListPlayers(ctx context.Context, tenantID string) ([]model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE tenant_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]model.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (s *Postgres) UpdatePlayer(ctx context.Context, p *model.Player) error {
	notesJSON, err := marshalNotes(p.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
		UPDATE players
		SET name = $3, title = $4, influence_level = $5, status = $6, notes = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := s.pool.Exec(ctx, query,
		p.TenantID, p.ID, p.Name, p.Title, p.InfluenceLevel, p.Status, notesJSON, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, p.ID)
	}
	return nil
}

func (s *Postgres) DeletePlayer(ctx context.Context, tenantID, playerID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM players WHERE tenant_id = $1 AND id = $2`, tenantID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM relationships WHERE tenant_id = $1 AND (from_player_id = $2 OR to_player_id = $2)`,
		tenantID, playerID)
	if err != nil {
		return fmt.Errorf("failed to cascade relationships: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) UpsertRelationship(ctx context.Context, r *model.Relationship) error {
	// Conflict on the pair, not the row id: an upsert for an existing
	// (from, to, kind) edits that row and keeps its identity.
	query := `
		INSERT INTO relationships (tenant_id, id, from_player_id, to_player_id, kind, type, strength, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, from_player_id, to_player_id, kind) DO UPDATE
		SET type = $6, strength = $7, updated_at = $9
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		r.TenantID, r.ID, r.FromPlayerID, r.ToPlayerID, r.Kind, r.Type, r.Strength, r.CreatedAt, r.UpdatedAt).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}
	return nil
}

func (s *Postgres) ListRelationships(ctx context.Context, tenantID string) ([]model.Relationship, error) {
	query := `
		SELECT tenant_id, id, from_player_id, to_player_id, kind, type, strength, created_at, updated_at
		FROM relationships WHERE tenant_id = $1 ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	relationships := make([]model.Relationship, 0)
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.TenantID, &r.ID, &r.FromPlayerID, &r.ToPlayerID, &r.Kind, &r.Type, &r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}

func (s *Postgres) DeleteRelationship(ctx context.Context, tenantID, relationshipID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM relationships WHERE tenant_id = $1 AND id = $2`, tenantID, relationshipID)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRelationshipNotFound, relationshipID)
	}
	return nil
}

func (s *Postgres) AppendEvents(ctx context.Context, tenantID string, events []model.CommunicationEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO communication_events (tenant_id, dedup_key, source_type, participants, ts, weight_hint)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, dedup_key) DO NOTHING
	`
	for _, e := range events {
		batch.Queue(query, tenantID, e.DedupKey(), e.SourceType, e.Participants, e.Timestamp, e.WeightHint)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append events: %w", err)
		}
	}
	return nil
}

func (s *Postgres) ListEvents(ctx context.Context, tenantID string, since time.Time) ([]model.CommunicationEvent, error) {
	query := `
		SELECT source_type, participants, ts, weight_hint
		FROM communication_events
		WHERE tenant_id = $1 AND ts >= $2
		ORDER BY ts, dedup_key
	`
	rows, err := s.pool.Query(ctx, query, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.CommunicationEvent, 0)
	for rows.Next() {
		var e model.CommunicationEvent
		if err := rows.Scan(&e.SourceType, &e.Participants, &e.Timestamp, &e.WeightHint); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
