package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"pointspay/internal/gateway"
	"pointspay/internal/model"
	"pointspay/internal/repository"
)

// HandleNotification authenticates a webhook delivery and hands the verified
// event to the bus. Verification runs against the exact raw payload bytes;
// nothing from an unverified payload is ever processed. The caller
// acknowledges the gateway as soon as this returns nil: crediting happens
// asynchronously on the worker side, and a failed publish returns an error so
// the gateway redelivers.
func (s *Points) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	n, err := s.gw.VerifyNotification(payload, signature)
	if err != nil {
		if errors.Is(err, model.ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrAuthentication, err)
	}

	if n.Kind != gateway.KindCheckoutCompleted {
		slog.Info("ignoring non-settlement event", "event_id", n.EventID, "kind", n.Kind)
		return nil
	}

	event := model.SettlementEvent{
		TransactionID: n.TransactionID,
		AmountPaid:    n.AmountMinorUnits,
		Metadata:      n.Metadata,
		ReceivedAt:    time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	if err := s.bus.Publish(repository.TopicSettlements, data); err != nil {
		// Nothing was credited; the gateway will redeliver.
		return fmt.Errorf("publish settlement event %s: %w", n.TransactionID, err)
	}

	slog.Info("settlement event accepted", "event_id", n.EventID, "transaction_id", n.TransactionID)
	return nil
}

// ProcessSettlement credits one verified settlement. Metadata problems are
// terminal: the gateway authored the metadata and redelivery won't change it.
// Transient store failures are retried with exponential backoff; when retries
// are exhausted a failed-payment record is written so the settlement can be
// reconciled, and the eventual redelivery is safe because the credit is keyed
// by transaction id.
func (s *Points) ProcessSettlement(ctx context.Context, event model.SettlementEvent) error {
	userID, points, err := extractSettlementMetadata(event)
	if err != nil {
		slog.Error("settlement metadata invalid",
			"transaction_id", event.TransactionID,
			"error", err,
		)
		s.recordFailure(ctx, event, userID, points, 0, err)
		return err
	}

	backoff := retry.WithMaxRetries(
		uint64(s.cfg.MaxRetries),
		retry.NewExponential(time.Duration(s.cfg.RetryBaseMillis)*time.Millisecond),
	)

	attempts := 0
	var result *repository.CreditResult

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		res, err := s.store.CreditAtomically(attemptCtx, userID, points, event.AmountPaid, event.TransactionID)
		if err != nil {
			if errors.Is(err, model.ErrTransientStore) {
				slog.Warn("transient store failure while crediting, will retry",
					"transaction_id", event.TransactionID,
					"attempt", attempts,
					"error", err,
				)
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, event, userID, points, attempts, err)
		return fmt.Errorf("credit settlement %s: %w", event.TransactionID, err)
	}

	if !result.Applied {
		slog.Info("settlement already credited, redelivery ignored",
			"transaction_id", event.TransactionID,
			"user_id", userID,
		)
		return nil
	}

	slog.Info("settlement credited",
		"transaction_id", event.TransactionID,
		"user_id", userID,
		"points", points,
		"new_balance", result.NewBalance,
	)
	return nil
}

func extractSettlementMetadata(event model.SettlementEvent) (string, int64, error) {
	userID := event.Metadata["user_id"]
	if userID == "" {
		return "", 0, fmt.Errorf("%w: missing user_id in metadata for %s", model.ErrMetadata, event.TransactionID)
	}

	raw, ok := event.Metadata["points"]
	if !ok {
		return userID, 0, fmt.Errorf("%w: missing points in metadata for %s", model.ErrMetadata, event.TransactionID)
	}
	points, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return userID, 0, fmt.Errorf("%w: points %q is not an integer", model.ErrMetadata, raw)
	}
	if points <= 0 {
		return userID, 0, fmt.Errorf("%w: points must be positive, got %d", model.ErrMetadata, points)
	}

	return userID, points, nil
}

func (s *Points) recordFailure(ctx context.Context, event model.SettlementEvent, userID string, points int64, attempts int, cause error) {
	fp := model.FailedPayment{
		TransactionID: event.TransactionID,
		UserID:        userID,
		Points:        points,
		LastError:     cause.Error(),
		Attempts:      attempts,
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err := s.store.RecordFailure(recordCtx, fp); err != nil {
		slog.Error("failed to persist failed-payment record",
			"transaction_id", event.TransactionID,
			"error", err,
		)
	}
}
