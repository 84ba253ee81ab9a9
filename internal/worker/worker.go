package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"pointspay/internal/model"
	"pointspay/internal/repository"
	"pointspay/internal/service"
)

// SettlementWorker consumes verified settlement events from NATS and credits
// them through the points service.
type SettlementWorker struct {
	svc      service.PointsService
	natsConn *nats.Conn
}

func NewSettlementWorker(svc service.PointsService, nc *nats.Conn) *SettlementWorker {
	return &SettlementWorker{svc: svc, natsConn: nc}
}

// Run subscribes to the settlements topic and blocks until ctx is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) error {
	// QueueSubscribe: with several replicas running, each settlement event is
	// delivered to exactly one worker in the group.
	sub, err := w.natsConn.QueueSubscribe(repository.TopicSettlements, "points_workers", func(m *nats.Msg) {
		var event model.SettlementEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			slog.Error("worker: failed to unmarshal settlement event", "error", err)
			return
		}

		// Idempotent credit with retry; terminal failures are recorded by the
		// service for reconciliation.
		if err := w.svc.ProcessSettlement(ctx, event); err != nil {
			slog.Error("worker: settlement processing failed",
				"transaction_id", event.TransactionID,
				"error", err,
			)
			return
		}
	})
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	slog.Info("settlement worker is running")

	<-ctx.Done()

	slog.Info("worker received shutdown signal, draining subscription...")
	return sub.Drain()
}

// Start implements the infrastructure.Server interface.
func (w *SettlementWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *SettlementWorker) Stop(ctx context.Context) error {
	return nil
}
