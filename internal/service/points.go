package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pointspay/internal/config"
	"pointspay/internal/gateway"
	"pointspay/internal/model"
	"pointspay/internal/repository"
)

const (
	gatewayTimeout = 10 * time.Second
	storeTimeout   = 5 * time.Second
)

// PointsService defines the business operations of the points backend.
// All transport layers (HTTP, NATS worker, channel bus) depend on this
// interface, not on the concrete implementation.
type PointsService interface {
	CreateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.CheckoutResult, error)
	HandleNotification(ctx context.Context, payload []byte, signature string) error
	ProcessSettlement(ctx context.Context, event model.SettlementEvent) error
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// LedgerStore is the balance store capability the service needs. Implemented
// by repository.LedgerRepo; faked in tests.
type LedgerStore interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	CreditAtomically(ctx context.Context, userID string, points, amountPaid int64, transactionID string) (*repository.CreditResult, error)
	RecordFailure(ctx context.Context, fp model.FailedPayment) error
}

type Points struct {
	store LedgerStore
	gw    gateway.Gateway
	bus   repository.MessageBus
	cfg   *config.Config
}

func NewPoints(store LedgerStore, gw gateway.Gateway, bus repository.MessageBus, cfg *config.Config) *Points {
	return &Points{store: store, gw: gw, bus: bus, cfg: cfg}
}

var _ PointsService = (*Points)(nil)

// CreateCheckout validates the purchase request and opens a checkout session
// gateway-side. Nothing is written locally; the credit happens later when the
// settlement notification arrives.
func (s *Points) CreateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.CheckoutResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", model.ErrValidation)
	}
	if req.Points < s.cfg.MinPoints || req.Points > s.cfg.MaxPoints {
		return nil, fmt.Errorf("%w: points must be between %d and %d, got %d",
			model.ErrValidation, s.cfg.MinPoints, s.cfg.MaxPoints, req.Points)
	}

	amount := req.Points * s.cfg.UnitPriceMinorUnits

	gwCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	sess, err := s.gw.CreateCheckout(gwCtx, gateway.CheckoutParams{
		UserID:           req.UserID,
		Points:           req.Points,
		AmountMinorUnits: amount,
	})
	if err != nil {
		if errors.Is(err, model.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrGateway, err)
	}

	slog.Info("checkout session created",
		"user_id", req.UserID,
		"points", req.Points,
		"amount", amount,
		"transaction_id", sess.TransactionID,
	)

	return &model.CheckoutResult{TransactionID: sess.TransactionID, URL: sess.URL}, nil
}

// GetBalance is a read-only lookup; users the store has never seen get the
// configured default balance.
func (s *Points) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user_id is required", model.ErrValidation)
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	return s.store.GetBalance(storeCtx, userID)
}
