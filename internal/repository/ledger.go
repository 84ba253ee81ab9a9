package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"pointspay/internal/model"
)

// LedgerRepo is the balance store: Postgres is the source of truth, Redis is
// a read cache for balance lookups. All balance mutations go through
// CreditAtomically; no other code path writes balances.
type LedgerRepo struct {
	dbPool         *pgxpool.Pool
	redisClient    *redis.Client
	defaultBalance int64
}

func NewLedgerRepo(db *pgxpool.Pool, rdb *redis.Client, defaultBalance int64) *LedgerRepo {
	return &LedgerRepo{
		dbPool:         db,
		redisClient:    rdb,
		defaultBalance: defaultBalance,
	}
}

type CreditResult struct {
	// Applied is false when the transaction id was already credited and this
	// call was a redelivery no-op.
	Applied    bool
	NewBalance int64
}

func balanceKey(userID string) string {
	return fmt.Sprintf("balance:%s", userID)
}

// GetBalance returns the user's balance, warming the Redis cache from
// Postgres on a miss. A user with no account row gets the configured default
// balance; the query writes nothing for such users.
func (r *LedgerRepo) GetBalance(ctx context.Context, userID string) (int64, error) {
	cached, err := r.redisClient.Get(ctx, balanceKey(userID)).Int64()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("redis balance lookup failed, falling back to postgres", "user_id", userID, "error", err)
	}

	var balance int64
	err = r.dbPool.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.defaultBalance, nil
	}
	if err != nil {
		return 0, classifyStoreError(fmt.Errorf("query balance: %w", err))
	}

	// Primary cache, no TTL: credits refresh it after commit.
	if err := r.redisClient.Set(ctx, balanceKey(userID), balance, 0).Err(); err != nil {
		slog.Warn("failed to warm balance cache", "user_id", userID, "error", err)
	}

	return balance, nil
}

// CreditAtomically applies one settlement: within a single Postgres
// transaction it claims the transaction id in the purchase ledger and adds
// points to the account, creating the account at default balance + points if
// absent. If the id is already claimed the call is a no-op with Applied=false.
// Two concurrent deliveries of the same id serialise on the ledger insert;
// exactly one commits a credit.
func (r *LedgerRepo) CreditAtomically(ctx context.Context, userID string, points, amountPaid int64, transactionID string) (*CreditResult, error) {
	tx, err := r.dbPool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("begin credit tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO purchases (transaction_id, user_id, points, amount_paid, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (transaction_id) DO NOTHING`,
		transactionID, userID, points, amountPaid, model.PurchaseStatusCompleted,
	)
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("insert purchase: %w", err))
	}

	if tag.RowsAffected() == 0 {
		// Redelivery: the ledger already holds this transaction id.
		var balance int64
		err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			balance = r.defaultBalance
		} else if err != nil {
			return nil, classifyStoreError(fmt.Errorf("query balance on redelivery: %w", err))
		}
		return &CreditResult{Applied: false, NewBalance: balance}, nil
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (user_id, balance, updated_at)
		VALUES ($1, $2 + $3, now())
		ON CONFLICT (user_id) DO UPDATE
			SET balance = accounts.balance + $3, updated_at = now()
		RETURNING balance`,
		userID, r.defaultBalance, points,
	).Scan(&newBalance)
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("upsert account balance: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyStoreError(fmt.Errorf("commit credit tx: %w", err))
	}

	// Best effort: keep the read cache in step with the committed balance.
	// If the refresh fails, evict the key instead of leaving a stale entry
	// behind; the next read warms the cache from Postgres.
	if err := r.redisClient.Set(ctx, balanceKey(userID), newBalance, 0).Err(); err != nil {
		slog.Warn("failed to refresh balance cache after credit", "user_id", userID, "error", err)
		if err := r.redisClient.Del(context.WithoutCancel(ctx), balanceKey(userID)).Err(); err != nil {
			slog.Warn("failed to evict stale balance cache entry", "user_id", userID, "error", err)
		}
	}

	return &CreditResult{Applied: true, NewBalance: newBalance}, nil
}

// RecordFailure appends a reconciliation record for a settlement that could
// not be credited.
func (r *LedgerRepo) RecordFailure(ctx context.Context, fp model.FailedPayment) error {
	if fp.ID == "" {
		fp.ID = uuid.New().String()
	}
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now()
	}

	_, err := r.dbPool.Exec(ctx, `
		INSERT INTO failed_payments (id, transaction_id, user_id, points, last_error, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fp.ID, fp.TransactionID, fp.UserID, fp.Points, fp.LastError, fp.Attempts, fp.CreatedAt,
	)
	if err != nil {
		return classifyStoreError(fmt.Errorf("insert failed payment: %w", err))
	}
	return nil
}

// classifyStoreError marks retryable conditions as ErrTransientStore.
// Integrity and data errors are the caller's bug and stay permanent;
// serialization failures, deadlocks, lock timeouts, cancelled contexts and
// broken connections are worth another attempt.
func classifyStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return fmt.Errorf("%w: %v", model.ErrTransientStore, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrTransientStore, err)
}
