package gateway

import "context"

// Notification kinds, normalised away from provider-specific event types.
const (
	KindCheckoutCompleted = "checkout.completed"
	KindOther             = "other"
)

type CheckoutParams struct {
	UserID           string
	Points           int64
	AmountMinorUnits int64
}

type CheckoutSession struct {
	TransactionID string
	URL           string
}

// Notification is a signature-verified payment event. Metadata is whatever
// the gateway round-tripped from checkout creation; callers must validate it.
type Notification struct {
	EventID          string
	Kind             string
	TransactionID    string
	AmountMinorUnits int64
	Metadata         map[string]string
}

// Gateway is the payment processor contract. CreateCheckout opens a pending
// transaction gateway-side; VerifyNotification authenticates a webhook
// delivery against the exact raw payload bytes.
type Gateway interface {
	CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	VerifyNotification(payload []byte, signature string) (*Notification, error)
}
