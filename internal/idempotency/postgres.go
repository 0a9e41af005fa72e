package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fintova/paycore/internal/domain"
)

// PostgresStore backs the idempotency cache with an idempotency_keys table.
// The primary key on (owner_user_id, token) plus a conditional upsert give
// the atomic create-if-absent the executor relies on.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects a pool and verifies the database is reachable.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, token string) (*domain.TransactionRecord, error) {
	record := domain.TransactionRecord{OwnerUserID: ownerID, Token: token}
	err := s.db.QueryRow(ctx, `
		SELECT transaction_id, state, created_at
		FROM idempotency_keys
		WHERE owner_user_id = $1 AND token = $2 AND expires_at > now()`,
		ownerID, token,
	).Scan(&record.TransactionID, &record.State, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	if !record.State.Valid() {
		return nil, fmt.Errorf("idempotency record has unknown state %q", record.State)
	}
	return &record, nil
}

// Create reserves the pair. An expired row does not block a fresh
// reservation: the conditional upsert overwrites it in the same statement,
// so the check and the write stay atomic.
func (s *PostgresStore) Create(ctx context.Context, ownerID, token, transactionID string) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (owner_user_id, token, transaction_id, state, created_at, expires_at)
		VALUES ($1, $2, $3, 'pending', now(), now() + make_interval(secs => $4))
		ON CONFLICT (owner_user_id, token) DO UPDATE
		SET transaction_id = EXCLUDED.transaction_id,
		    state          = 'pending',
		    created_at     = now(),
		    expires_at     = now() + make_interval(secs => $4)
		WHERE idempotency_keys.expires_at <= now()`,
		ownerID, token, transactionID, RetentionWindow.Seconds(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Conflicted with a live row.
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) SetState(ctx context.Context, ownerID, token string, state domain.TxState) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET state = $3
		WHERE owner_user_id = $1 AND token = $2 AND expires_at > now()`,
		ownerID, token, string(state),
	)
	if err != nil {
		return fmt.Errorf("state update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
