// Package audit keeps a ledger of checkout attempts. Payment tokens and client secrets are
// never written to it.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/storefront/pkg/metrics"
)

// ErrNotFound is returned when no attempt exists for a subscription id.
var ErrNotFound = errors.New("audit: attempt not found")

// Attempt is one checkout attempt
type Attempt struct {
	SubscriptionID string
	CustomerID     string
	Email          string
	PriceIDs       []string
	CouponApplied  bool
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS checkout_attempts (
	subscription_id TEXT PRIMARY KEY,
	customer_id     TEXT NOT NULL,
	email           TEXT NOT NULL,
	price_ids       TEXT NOT NULL,
	coupon_applied  BOOLEAN NOT NULL DEFAULT FALSE,
	status          TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
)`

// Store persists attempts with database/sql. Queries use $N placeholders and ON CONFLICT,
// which both Postgres and SQLite accept.
type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewStore creates a new audit store
func NewStore(db *sql.DB, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the ledger table if needed
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed creating checkout_attempts: %w", err)
	}
	return nil
}

// Record inserts an attempt, or refreshes its status when the subscription id is already known
// (an idempotent replay of the same create).
func (s *Store) Record(ctx context.Context, a Attempt) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	defer s.observe("insert", s.now())

	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkout_attempts
			(subscription_id, customer_id, email, price_ids, coupon_applied, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subscription_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		a.SubscriptionID, a.CustomerID, a.Email, strings.Join(a.PriceIDs, ","), a.CouponApplied, a.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.SubscriptionID, err)
	}
	return nil
}

// UpdateStatus sets the latest known status of an attempt
func (s *Store) UpdateStatus(ctx context.Context, subscriptionID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	defer s.observe("update", s.now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE checkout_attempts SET status = $1, updated_at = $2 WHERE subscription_id = $3`,
		status, s.now(), subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", subscriptionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", subscriptionID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads an attempt by subscription id
func (s *Store) Get(ctx context.Context, subscriptionID string) (*Attempt, error) {
	var (
		a        Attempt
		priceIDs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT subscription_id, customer_id, email, price_ids, coupon_applied, status, created_at, updated_at
		FROM checkout_attempts WHERE subscription_id = $1`,
		subscriptionID,
	).Scan(&a.SubscriptionID, &a.CustomerID, &a.Email, &priceIDs, &a.CouponApplied, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt %s: %w", subscriptionID, err)
	}
	if priceIDs != "" {
		a.PriceIDs = strings.Split(priceIDs, ",")
	}
	return &a, nil
}

// PruneBefore deletes attempts last updated before cutoff and returns how many were removed
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer s.observe("delete", s.now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM checkout_attempts WHERE updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the ledger is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) observe(op string, start time.Time) {
	s.metrics.RecordDBQuery(op, s.now().Sub(start))
}
