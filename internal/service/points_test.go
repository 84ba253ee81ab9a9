package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pointspay/internal/config"
	"pointspay/internal/gateway"
	"pointspay/internal/model"
	"pointspay/internal/repository"
)

// fakeStore mimics the ledger contract: credits are keyed by transaction id,
// accounts are lazily created at default balance + points.
type fakeStore struct {
	mu             sync.Mutex
	defaultBalance int64
	balances       map[string]int64
	purchases      map[string]model.Purchase
	failures       []model.FailedPayment
	creditErrs     []error // consumed one per CreditAtomically call
	creditCalls    int
	failureErr     error
}

func newFakeStore(defaultBalance int64) *fakeStore {
	return &fakeStore{
		defaultBalance: defaultBalance,
		balances:       make(map[string]int64),
		purchases:      make(map[string]model.Purchase),
	}
}

func (f *fakeStore) GetBalance(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[userID]; ok {
		return b, nil
	}
	return f.defaultBalance, nil
}

func (f *fakeStore) CreditAtomically(ctx context.Context, userID string, points, amountPaid int64, transactionID string) (*repository.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creditCalls++
	if len(f.creditErrs) > 0 {
		err := f.creditErrs[0]
		f.creditErrs = f.creditErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	if _, exists := f.purchases[transactionID]; exists {
		return &repository.CreditResult{Applied: false, NewBalance: f.balances[userID]}, nil
	}

	current, ok := f.balances[userID]
	if !ok {
		current = f.defaultBalance
	}
	newBalance := current + points

	f.balances[userID] = newBalance
	f.purchases[transactionID] = model.Purchase{
		TransactionID: transactionID,
		UserID:        userID,
		Points:        points,
		AmountPaid:    amountPaid,
		Status:        model.PurchaseStatusCompleted,
	}

	return &repository.CreditResult{Applied: true, NewBalance: newBalance}, nil
}

func (f *fakeStore) RecordFailure(ctx context.Context, fp model.FailedPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failureErr != nil {
		return f.failureErr
	}
	f.failures = append(f.failures, fp)
	return nil
}

type fakeGateway struct {
	createCalls  []gateway.CheckoutParams
	session      *gateway.CheckoutSession
	createErr    error
	notification *gateway.Notification
	verifyErr    error
}

func (f *fakeGateway) CreateCheckout(ctx context.Context, p gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	f.createCalls = append(f.createCalls, p)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.session, nil
}

func (f *fakeGateway) VerifyNotification(payload []byte, signature string) (*gateway.Notification, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.notification, nil
}

type fakeBus struct {
	topics     []string
	published  [][]byte
	publishErr error
}

func (f *fakeBus) Publish(topic string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, data)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MinPoints:           10,
		MaxPoints:           5000,
		UnitPriceMinorUnits: 10,
		DefaultBalance:      5,
		MaxRetries:          3,
		RetryBaseMillis:     1,
	}
}

func TestCreateCheckout_RejectsOutOfBoundsWithoutGatewayCall(t *testing.T) {
	cases := []struct {
		name string
		req  model.CheckoutRequest
	}{
		{"below minimum", model.CheckoutRequest{UserID: "u1", Points: 9}},
		{"above maximum", model.CheckoutRequest{UserID: "u1", Points: 5001}},
		{"zero", model.CheckoutRequest{UserID: "u1", Points: 0}},
		{"negative", model.CheckoutRequest{UserID: "u1", Points: -50}},
		{"missing user id", model.CheckoutRequest{UserID: "", Points: 100}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := NewPoints(newFakeStore(5), gw, &fakeBus{}, testConfig())

			_, err := svc.CreateCheckout(context.Background(), tc.req)

			require.ErrorIs(t, err, model.ErrValidation)
			require.Empty(t, gw.createCalls, "rejected request must not reach the gateway")
		})
	}
}

func TestCreateCheckout_ComputesPriceAndReturnsURL(t *testing.T) {
	gw := &fakeGateway{
		session: &gateway.CheckoutSession{TransactionID: "cs_1", URL: "https://pay.example/cs_1"},
	}
	svc := NewPoints(newFakeStore(5), gw, &fakeBus{}, testConfig())

	res, err := svc.CreateCheckout(context.Background(), model.CheckoutRequest{UserID: "u1", Points: 100})

	require.NoError(t, err)
	require.Equal(t, "https://pay.example/cs_1", res.URL)
	require.Equal(t, "cs_1", res.TransactionID)

	require.Len(t, gw.createCalls, 1)
	require.Equal(t, "u1", gw.createCalls[0].UserID)
	require.Equal(t, int64(100), gw.createCalls[0].Points)
	require.Equal(t, int64(1000), gw.createCalls[0].AmountMinorUnits)
}

func TestCreateCheckout_GatewayFailureSurfacesAsGatewayError(t *testing.T) {
	gw := &fakeGateway{createErr: fmt.Errorf("connection refused")}
	svc := NewPoints(newFakeStore(5), gw, &fakeBus{}, testConfig())

	_, err := svc.CreateCheckout(context.Background(), model.CheckoutRequest{UserID: "u1", Points: 100})

	require.ErrorIs(t, err, model.ErrGateway)
}

func TestGetBalance_DefaultForUnknownUser(t *testing.T) {
	store := newFakeStore(5)
	svc := NewPoints(store, &fakeGateway{}, &fakeBus{}, testConfig())

	balance, err := svc.GetBalance(context.Background(), "never-seen")

	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
	require.Empty(t, store.balances, "a balance query must not create an account")
	require.Empty(t, store.purchases)
}

func TestGetBalance_RequiresUserID(t *testing.T) {
	svc := NewPoints(newFakeStore(5), &fakeGateway{}, &fakeBus{}, testConfig())

	_, err := svc.GetBalance(context.Background(), "")

	require.ErrorIs(t, err, model.ErrValidation)
}
