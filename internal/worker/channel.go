package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"pointspay/internal/model"
	"pointspay/internal/service"
	"pointspay/internal/transport/channel"
)

// drainTimeout bounds shutdown processing of already-acknowledged settlements.
const drainTimeout = 30 * time.Second

// ChannelWorker drains the in-process bus when the channel provider is
// configured. Same processing path as the NATS worker, without the broker.
type ChannelWorker struct {
	svc service.PointsService
	bus *channel.Bus
}

func NewChannelWorker(svc service.PointsService, bus *channel.Bus) *ChannelWorker {
	return &ChannelWorker{svc: svc, bus: bus}
}

func (w *ChannelWorker) Start(ctx context.Context) error {
	slog.Info("channel settlement worker is running")

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return nil
		case data := <-w.bus.Events():
			w.handle(ctx, data)
		}
	}
}

// drain empties the bus buffer on shutdown. Every buffered event was already
// acknowledged to the gateway, which will never redeliver it, so each one must
// be credited now or at least leave a failed-payment record.
func (w *ChannelWorker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	drained := 0
	for {
		select {
		case data := <-w.bus.Events():
			w.handle(drainCtx, data)
			drained++
		default:
			if drained > 0 {
				slog.Info("worker: drained buffered settlements on shutdown", "count", drained)
			}
			return
		}
	}
}

func (w *ChannelWorker) handle(ctx context.Context, data []byte) {
	var event model.SettlementEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal settlement event", "error", err)
		return
	}
	if err := w.svc.ProcessSettlement(ctx, event); err != nil {
		slog.Error("worker: settlement processing failed",
			"transaction_id", event.TransactionID,
			"error", err,
		)
	}
}

func (w *ChannelWorker) Stop(ctx context.Context) error {
	return nil
}
