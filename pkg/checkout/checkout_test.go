package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/models"
	"github.com/jordanlanch/storefront/pkg/pricing"
)

type recordingView struct {
	mu          sync.Mutex
	summaries   []pricing.Summary
	formVisible []bool
	submit      []bool
	errors      []string
	cleared     int
	terminals   []Terminal
}

func (v *recordingView) SummaryChanged(s pricing.Summary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.summaries = append(v.summaries, s)
}

func (v *recordingView) PaymentFormVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formVisible = append(v.formVisible, visible)
}

func (v *recordingView) SubmitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submit = append(v.submit, enabled)
}

func (v *recordingView) ShowError(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, message)
}

func (v *recordingView) ClearError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleared++
}

func (v *recordingView) OrderTerminal(t Terminal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.terminals = append(v.terminals, t)
}

func (v *recordingView) lastSubmit() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submit[len(v.submit)-1]
}

type fakeTokenizer struct {
	token PaymentToken
	err   error
	calls int
	block chan struct{}
}

func (f *fakeTokenizer) Tokenize(ctx context.Context, card CardDetails, email string) (PaymentToken, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.token, f.err
}

type fakeOrchestrator struct {
	mu          sync.Mutex
	createRes   *models.SubscriptionResource
	createErr   error
	confirmRes  *models.SubscriptionResource
	confirmErr  error
	created     []*models.CreateSubscriptionRequest
	keys        []string
	confirmed   []string
	onConfirmed func()
}

func (f *fakeOrchestrator) CreateSubscription(ctx context.Context, req *models.CreateSubscriptionRequest, key string) (*models.SubscriptionResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	f.keys = append(f.keys, key)
	return f.createRes, f.createErr
}

func (f *fakeOrchestrator) ConfirmSubscription(ctx context.Context, id string) (*models.SubscriptionResource, error) {
	f.mu.Lock()
	f.confirmed = append(f.confirmed, id)
	f.mu.Unlock()
	if f.onConfirmed != nil {
		f.onConfirmed()
	}
	return f.confirmRes, f.confirmErr
}

type fakeAuthenticator struct {
	err     error
	secrets []string
	onCall  func()
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, secret string) error {
	f.secrets = append(f.secrets, secret)
	if f.onCall != nil {
		f.onCall()
	}
	return f.err
}

type timerCall struct {
	d time.Duration
	f func()
}

type harness struct {
	co     *Checkout
	view   *recordingView
	tok    *fakeTokenizer
	api    *fakeOrchestrator
	auth   *fakeAuthenticator
	timers []timerCall
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{ID: "a", Title: "Hamster", UnitAmount: 500},
		{ID: "b", Title: "Piglet", UnitAmount: 700},
	}, catalog.DiscountPolicy{MinQualifyingCount: 2, Rate: 0.2}, "pk_test")
	require.NoError(t, err)

	h := &harness{
		view: &recordingView{},
		tok:  &fakeTokenizer{token: "pm_123"},
		api: &fakeOrchestrator{
			createRes:  &models.SubscriptionResource{ID: "sub_1", Status: "incomplete"},
			confirmRes: &models.SubscriptionResource{ID: "sub_1", Status: "active"},
		},
		auth: &fakeAuthenticator{},
	}
	h.co, err = New(Config{
		Catalog:   cat,
		Tokenizer: h.tok,
		API:       h.api,
		Handshake: NewHandshake(h.auth, h.api, nil),
		View:      h.view,
	})
	require.NoError(t, err)
	h.co.after = func(d time.Duration, f func()) { h.timers = append(h.timers, timerCall{d: d, f: f}) }
	h.co.newKey = func() string { return "key-1" }
	return h
}

var testCard = CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}

func TestNew_RendersEmptyState(t *testing.T) {
	h := newHarness(t)

	require.Len(t, h.view.summaries, 1)
	assert.True(t, h.view.summaries[0].Empty())
	assert.Equal(t, []bool{false}, h.view.formVisible)
	assert.Equal(t, []bool{true}, h.view.submit)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestToggle_RendersSummary(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.co.Toggle("a"))
	assert.True(t, h.co.Toggle("b"))

	last := h.view.summaries[len(h.view.summaries)-1]
	assert.Equal(t, int64(1200), last.Subtotal)
	assert.Equal(t, int64(240), last.Discount)
	assert.Equal(t, int64(960), last.Total)
	assert.Equal(t, []bool{false, true, true}, h.view.formVisible)

	assert.True(t, h.co.Toggle("a"))
	assert.True(t, h.co.Toggle("b"))
	assert.Equal(t, false, h.view.formVisible[len(h.view.formVisible)-1])
	assert.True(t, h.co.Summary().Empty())
}

func TestToggle_UnknownIDIsSilent(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.co.Toggle("nope"))
	assert.Len(t, h.view.summaries, 1)
}

func TestSubmit_DeclineIsRecoverable(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("a")
	h.tok.err = &DeclineError{Reason: "Your card was declined."}

	_, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.Error(t, err)
	var de *DeclineError
	require.ErrorAs(t, err, &de)

	assert.True(t, h.view.lastSubmit(), "submit is re-enabled immediately")
	assert.Equal(t, []string{"Your card was declined."}, h.view.errors)
	assert.Empty(t, h.api.created, "no subscription is created after a decline")
	assert.Empty(t, h.view.terminals)

	require.Len(t, h.timers, 1)
	assert.Equal(t, 4000*time.Millisecond, h.timers[0].d)
	clearedBefore := h.view.cleared
	h.timers[0].f()
	assert.Equal(t, clearedBefore+1, h.view.cleared)

	// the buyer can try again
	h.tok.err = nil
	res, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "active", res.Status)
}

func TestSubmit_StaleDeclineTimerDoesNotClearNewerMessage(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("a")
	h.tok.err = &DeclineError{Reason: "first"}
	_, _ = h.co.Submit(context.Background(), testCard, "buyer@example.com")
	h.tok.err = &DeclineError{Reason: "second"}
	_, _ = h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.Len(t, h.timers, 2)

	cleared := h.view.cleared
	h.timers[0].f()
	assert.Equal(t, cleared, h.view.cleared)
	h.timers[1].f()
	assert.Equal(t, cleared+1, h.view.cleared)
}

func TestSubmit_CreatesWithSelectionInCatalogOrder(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("b")
	h.co.Toggle("a")

	res, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.NoError(t, err)

	require.Len(t, h.api.created, 1)
	req := h.api.created[0]
	assert.Equal(t, []string{"a", "b"}, req.PriceIDs)
	assert.Equal(t, "pm_123", req.PaymentMethod)
	assert.Equal(t, "buyer@example.com", req.Email)
	assert.Equal(t, []string{"key-1"}, h.api.keys)

	assert.Equal(t, []string{"sub_1"}, h.api.confirmed)
	assert.Equal(t, "active", res.Status)
	require.Len(t, h.view.terminals, 1)
	assert.Equal(t, "active", h.view.terminals[0].Status)
}

func TestSubmit_RequiresAuthenticationBeforeConfirm(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("a")
	h.api.createRes = &models.SubscriptionResource{
		ID:     "sub_1",
		Status: "incomplete",
		LatestInvoice: &models.InvoiceInfo{ID: "in_1", PaymentIntent: &models.PaymentIntentInfo{
			ID: "pi_1", Status: models.PaymentIntentRequiresAction, ClientSecret: "pi_1_secret_x",
		}},
	}
	h.auth.err = assert.AnError
	h.auth.onCall = func() { assert.Empty(t, h.api.confirmed, "confirm must wait for the challenge") }

	res, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"pi_1_secret_x"}, h.auth.secrets)
	assert.Equal(t, []string{"sub_1"}, h.api.confirmed, "declined challenge still confirms")
	assert.Equal(t, "active", res.Status)
}

func TestSubmit_CreateErrorNeverConfirms(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("a")
	h.api.createRes = nil
	h.api.createErr = &ServiceError{StatusCode: 402, Message: "X"}

	res, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, StatusCreateError, res.Status)
	assert.Equal(t, "X", res.Message)
	assert.Empty(t, h.api.confirmed)
	require.Len(t, h.view.terminals, 1)
	assert.Equal(t, StatusCreateError, h.view.terminals[0].Status)
}

func TestSubmit_EmptySelection(t *testing.T) {
	h := newHarness(t)

	_, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Zero(t, h.tok.calls)
}

func TestSubmit_SingleAttemptInFlight(t *testing.T) {
	h := newHarness(t)
	h.co.Toggle("a")
	h.tok.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
		done <- err
	}()

	require.Eventually(t, func() bool {
		h.co.mu.Lock()
		defer h.co.mu.Unlock()
		return h.co.inFlight
	}, time.Second, time.Millisecond)

	_, err := h.co.Submit(context.Background(), testCard, "buyer@example.com")
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	close(h.tok.block)
	require.NoError(t, <-done)
	assert.Len(t, h.api.created, 1)

	_, err = h.co.Submit(context.Background(), testCard, "buyer@example.com")
	assert.ErrorIs(t, err, ErrAttemptConcluded)
}
