package model

import "time"

// Purchases only ever hold completed rows; settlements that could not be
// credited go to failed_payments instead, so a later redelivery can still
// claim the transaction id.
const PurchaseStatusCompleted = "completed"

type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchase is one row of the append-only purchase ledger, keyed by the
// gateway transaction id. At most one completed row may exist per id.
type Purchase struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Points        int64     `json:"points"`
	AmountPaid    int64     `json:"amount_paid"` // minor units
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// FailedPayment captures a settlement that could not be credited, for
// reconciliation. The gateway will redeliver the notification later.
type FailedPayment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Points        int64     `json:"points"`
	LastError     string    `json:"last_error"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

type CheckoutRequest struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

type CheckoutResult struct {
	TransactionID string `json:"transaction_id"`
	URL           string `json:"url"`
}

// SettlementEvent is a signature-verified "checkout completed" notification,
// published on the bus for asynchronous crediting. Metadata is carried as the
// gateway round-tripped it: opaque strings, validated by the processor.
type SettlementEvent struct {
	TransactionID string            `json:"transaction_id"`
	AmountPaid    int64             `json:"amount_paid"`
	Metadata      map[string]string `json:"metadata"`
	ReceivedAt    time.Time         `json:"received_at"`
}
