package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"pointspay/internal/config"
	"pointspay/internal/model"
)

const checkoutCurrency = "usd"

// StripeGateway implements Gateway on top of Stripe Checkout. The API client
// is constructed explicitly and passed around; no package-global key.
type StripeGateway struct {
	api        *client.API
	signingKey string
	successURL string
	cancelURL  string
}

func NewStripeGateway(cfg *config.Config) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.StripeSecretKey, nil)

	return &StripeGateway{
		api:        api,
		signingKey: cfg.WebhookSigningKey,
		successURL: cfg.CheckoutSuccessURL,
		cancelURL:  cfg.CheckoutCancelURL,
	}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(checkoutCurrency),
					UnitAmount: stripe.Int64(p.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d points", p.Points)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", p.UserID)
	params.AddMetadata("points", fmt.Sprintf("%d", p.Points))

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", model.ErrGateway, err)
	}

	return &CheckoutSession{TransactionID: sess.ID, URL: sess.URL}, nil
}

// VerifyNotification recomputes the HMAC signature over the raw payload bytes
// and checks it against the Stripe-Signature header, including the timestamp
// tolerance window. The payload must be the exact bytes Stripe sent.
func (g *StripeGateway) VerifyNotification(payload []byte, signature string) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.signingKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAuthentication, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return &Notification{EventID: event.ID, Kind: KindOther}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", model.ErrAuthentication, err)
	}

	return &Notification{
		EventID:          event.ID,
		Kind:             KindCheckoutCompleted,
		TransactionID:    sess.ID,
		AmountMinorUnits: sess.AmountTotal,
		Metadata:         sess.Metadata,
	}, nil
}
