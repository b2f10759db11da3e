package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/metrics"
	"github.com/jordanlanch/storefront/pkg/models"
	"github.com/jordanlanch/storefront/pkg/pricing"
)

const receiptGuardTTL = 30 * 24 * time.Hour

// Receipt is the rendered content of a subscription receipt.
type Receipt struct {
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers subscription receipts.
type EmailSender interface {
	SendReceipt(ctx context.Context, to string, r Receipt) error
}

// AttemptLedger records checkout attempts. The payment token is never passed to it.
type AttemptLedger interface {
	RecordAttempt(ctx context.Context, email string, priceIDs []string, res *models.SubscriptionResource) error
	RecordFinalized(ctx context.Context, res *models.SubscriptionResource) error
}

// OnceGuard claims a key at most once within ttl.
type OnceGuard interface {
	SetOnce(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// Config configures the billing service
type Config struct {
	Catalog   *catalog.Catalog
	CouponID  string
	StoreName string
	Clients   *StripeClients
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Service creates and finalizes subscriptions against Stripe
type Service struct {
	catalog   *catalog.Catalog
	couponID  string
	storeName string
	api       StripeClients
	logger    logger.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate

	webhookSecret string

	ledger AttemptLedger
	email  EmailSender
	guard  OnceGuard
}

// NewService creates a new billing service
func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("billing: catalog is required")
	}
	if cfg.Clients == nil || cfg.Clients.Customers == nil || cfg.Clients.Subscriptions == nil {
		return nil, errors.New("billing: incomplete stripe client configuration")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	storeName := cfg.StoreName
	if storeName == "" {
		storeName = "Storefront"
	}

	return &Service{
		catalog:   cfg.Catalog,
		couponID:  strings.TrimSpace(cfg.CouponID),
		storeName: storeName,
		api:       *cfg.Clients,
		logger:    log.With("component", "billing"),
		metrics:   cfg.Metrics,
		validate:  validator.New(),
		guard:     newMemoryGuard(),
	}, nil
}

// SetEmailSender sets the sender used for subscription receipts.
func (s *Service) SetEmailSender(e EmailSender) {
	s.email = e
}

// SetLedger sets the attempt ledger.
func (s *Service) SetLedger(l AttemptLedger) {
	s.ledger = l
}

// SetOnceGuard replaces the in-process receipt guard, typically with Redis.
func (s *Service) SetOnceGuard(g OnceGuard) {
	s.guard = g
}

// Catalog returns the server catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// SetupPage returns the checkout bootstrap payload.
func (s *Service) SetupPage() *models.SetupResponse {
	policy := s.catalog.Policy()
	resp := &models.SetupResponse{
		PublicKey:              s.catalog.PublicKey(),
		MinProductsForDiscount: policy.MinQualifyingCount,
		DiscountRate:           policy.Rate,
		Products:               make([]models.SetupProduct, 0, s.catalog.Len()),
	}
	for _, it := range s.catalog.Items() {
		resp.Products = append(resp.Products, models.SetupProduct{
			Price: models.SetupPrice{ID: it.ID, UnitAmount: it.UnitAmount},
			Title: it.Title,
			Emoji: it.DisplayAsset,
		})
	}
	return resp
}

// PreviewPrice prices price ids with the server's policy.
func (s *Service) PreviewPrice(req *models.PricePreviewRequest) (*models.PricePreviewResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidationError("Invalid request data. Please check your input and try again.")
	}
	items, err := s.resolvePrices(req.PriceIDs)
	if err != nil {
		return nil, err
	}

	sum := pricing.ComputeSummary(items, s.catalog.Policy())
	resp := &models.PricePreviewResponse{
		LineItems:     make([]models.PreviewLine, len(sum.LineItems)),
		Subtotal:      sum.Subtotal,
		Discount:      sum.Discount,
		Total:         sum.Total,
		CouponApplied: sum.DiscountApplied && s.couponID != "",
		Display:       pricing.FormatTotal(sum),
	}
	for i, li := range sum.LineItems {
		resp.LineItems[i] = models.PreviewLine{PriceID: li.PriceID, Title: li.Title, UnitAmount: li.UnitAmount}
	}
	return resp, nil
}

// CreateSubscription creates a customer with the payment method as its invoice default and
// subscribes it to every distinct price, applying the coupon when the server policy allows.
func (s *Service) CreateSubscription(ctx context.Context, req *models.CreateSubscriptionRequest) (*models.SubscriptionResource, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidationError("Invalid request data. Please check your input and try again.")
	}
	items, err := s.resolvePrices(req.PriceIDs)
	if err != nil {
		return nil, err
	}

	applyCoupon := s.catalog.Policy().Eligible(len(items)) && s.couponID != ""
	idemKey := IdempotencyKeyFromContext(ctx)

	custParams := &stripe.CustomerParams{
		Email:         stripe.String(req.Email),
		PaymentMethod: stripe.String(req.PaymentMethod),
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(req.PaymentMethod),
		},
	}
	custParams.Context = ctx
	if idemKey != "" {
		custParams.SetIdempotencyKey(idemKey + ":customer")
	}

	cust, err := s.api.Customers.New(custParams)
	if err != nil {
		s.metrics.RecordBillingError("create_customer")
		s.logger.Warn("customer creation failed", "error", err)
		return nil, creationError(err)
	}
	if cust == nil || cust.ID == "" {
		return nil, domain.NewUnexpectedResponseError(errors.New("customer id is missing"))
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(cust.ID),
		Items:    make([]*stripe.SubscriptionItemsParams, len(items)),
	}
	for i, it := range items {
		subParams.Items[i] = &stripe.SubscriptionItemsParams{Price: stripe.String(it.ID)}
	}
	if applyCoupon {
		subParams.Coupon = stripe.String(s.couponID)
	}
	subParams.Context = ctx
	subParams.AddExpand("latest_invoice.payment_intent")
	if idemKey != "" {
		subParams.SetIdempotencyKey(idemKey + ":subscription")
	}

	sub, err := s.api.Subscriptions.New(subParams)
	if err != nil {
		s.metrics.RecordBillingError("create_subscription")
		s.logger.Warn("subscription creation failed", "customer_id", cust.ID, "error", err)
		return nil, creationError(err)
	}

	res, err := toResource(sub)
	if err != nil {
		s.metrics.RecordBillingError("create_subscription")
		s.logger.Error("unexpected subscription payload", "customer_id", cust.ID, "error", err)
		return nil, err
	}
	if applyCoupon {
		res.CouponApplied = true
	}

	s.metrics.RecordSubscriptionCreated(res.Status, res.CouponApplied, res.RequiresAuthentication())
	s.logger.Info("subscription created",
		"subscription_id", res.ID,
		"customer_id", res.CustomerID,
		"status", res.Status,
		"items", len(items),
		"coupon_applied", res.CouponApplied,
		"requires_authentication", res.RequiresAuthentication(),
	)

	if s.ledger != nil {
		if err := s.ledger.RecordAttempt(ctx, req.Email, itemIDs(items), res); err != nil {
			s.logger.Error("failed to record checkout attempt", "subscription_id", res.ID, "error", err)
		}
	}
	return res, nil
}

// FinalizeSubscription re-reads a subscription by id. It does not mutate anything on the
// provider, so calling it repeatedly yields the same result while the provider state is unchanged.
func (s *Service) FinalizeSubscription(ctx context.Context, id string) (*models.SubscriptionResource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("subscriptionId is required")
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")
	params.AddExpand("customer")

	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, domain.NewNotFoundError("subscription")
		}
		s.metrics.RecordBillingError("get_subscription")
		s.logger.Warn("subscription retrieval failed", "subscription_id", id, "error", err)
		return nil, creationError(err)
	}

	res, err := toResource(sub)
	if err != nil {
		s.metrics.RecordBillingError("get_subscription")
		s.logger.Error("unexpected subscription payload", "subscription_id", id, "error", err)
		return nil, err
	}

	s.metrics.RecordSubscriptionFinalized(res.Status)
	s.logger.Info("subscription finalized", "subscription_id", res.ID, "status", res.Status)

	if s.ledger != nil {
		if err := s.ledger.RecordFinalized(ctx, res); err != nil {
			s.logger.Error("failed to record finalized status", "subscription_id", res.ID, "error", err)
		}
	}
	s.sendReceipt(ctx, customerEmail(sub), res)
	return res, nil
}

// resolvePrices maps ids to distinct catalog items in catalog order.
func (s *Service) resolvePrices(ids []string) ([]catalog.Item, error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := s.catalog.Lookup(id); !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("Unknown price id: %s", id))
		}
		seen[id] = true
	}

	items := make([]catalog.Item, 0, len(seen))
	for _, it := range s.catalog.Items() {
		if seen[it.ID] {
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *Service) sendReceipt(ctx context.Context, to string, res *models.SubscriptionResource) {
	if s.email == nil || to == "" {
		return
	}
	if res.Status != string(stripe.SubscriptionStatusActive) && res.Status != string(stripe.SubscriptionStatusTrialing) {
		return
	}

	claimed, err := s.guard.SetOnce(ctx, "receipt:"+res.ID, "1", receiptGuardTTL)
	if err != nil {
		s.logger.Warn("receipt guard unavailable", "subscription_id", res.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	var titles []string
	for _, it := range res.Items {
		if item, ok := s.catalog.Lookup(it.PriceID); ok {
			titles = append(titles, item.Title)
		}
	}
	var amount int64
	if res.LatestInvoice != nil {
		amount = res.LatestInvoice.AmountDue
	}

	subject, html, plain := buildReceiptEmail(s.storeName, titles, amount, res.CouponApplied)
	if err := s.email.SendReceipt(ctx, to, Receipt{Subject: subject, HTML: html, Text: plain}); err != nil {
		s.logger.Error("failed to send receipt", "subscription_id", res.ID, "error", err)
	}
}

func itemIDs(items []catalog.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// IdempotencyHeader carries the client generated key of a create attempt.
const IdempotencyHeader = "Idempotency-Key"

type idempotencyKey struct{}

// WithIdempotencyKey attaches a client idempotency key that is forwarded to Stripe.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKeyFromContext returns the key set by WithIdempotencyKey.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{seen: make(map[string]time.Time)}
}

func (g *memoryGuard) SetOnce(_ context.Context, key string, _ interface{}, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(ttl)
	return true, nil
}
