package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/store"
)

// Store persists the ledger blob as one JSONB row per namespace.
type Store struct {
	db        *sql.DB
	namespace string
}

func New(ctx context.Context, databaseURL string, namespace string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if namespace == "" {
		namespace = "aracitakip"
	}
	s := &Store{db: db, namespace: namespace}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_states (
			namespace  TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure ledger_states: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (domain.State, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM ledger_states
		WHERE namespace = $1
	`, s.namespace).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.State{}, store.ErrNotFound
	}
	if err != nil {
		return domain.State{}, err
	}

	var state domain.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.State{}, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_states (namespace, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (namespace)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, s.namespace, payload)
	return err
}
