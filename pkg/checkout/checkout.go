package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/models"
	"github.com/jordanlanch/storefront/pkg/pricing"
)

// DeclineMessageTTL is how long a card decline stays on screen.
const DeclineMessageTTL = 4 * time.Second

var (
	ErrAttemptInFlight  = errors.New("a checkout attempt is already in progress")
	ErrAttemptConcluded = errors.New("this checkout has already concluded")
	ErrEmptySelection   = errors.New("no products selected")
)

// View renders checkout state. Calls happen on the goroutine that triggered the change.
type View interface {
	SummaryChanged(summary pricing.Summary)
	PaymentFormVisible(visible bool)
	SubmitEnabled(enabled bool)
	ShowError(message string)
	ClearError()
	OrderTerminal(result Terminal)
}

// Config wires a Checkout.
type Config struct {
	Catalog   *catalog.Catalog
	Tokenizer Tokenizer
	API       Orchestrator
	Handshake *Handshake
	View      View
	Logger    logger.Logger
}

// Checkout owns one buyer's selection and at most one payment attempt at a time.
type Checkout struct {
	mu        sync.Mutex
	selection *pricing.Selection
	inFlight  bool
	concluded bool
	errGen    int

	tokenizer Tokenizer
	api       Orchestrator
	handshake *Handshake
	view      View
	logger    logger.Logger

	after  func(d time.Duration, f func())
	newKey func() string
}

// New creates a Checkout and renders its empty state.
func New(cfg Config) (*Checkout, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("checkout: catalog is required")
	}
	if cfg.Tokenizer == nil || cfg.API == nil || cfg.View == nil {
		return nil, errors.New("checkout: tokenizer, api and view are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	hs := cfg.Handshake
	if hs == nil {
		return nil, errors.New("checkout: handshake is required")
	}

	c := &Checkout{
		selection: pricing.NewSelection(cfg.Catalog),
		tokenizer: cfg.Tokenizer,
		api:       cfg.API,
		handshake: hs,
		view:      cfg.View,
		logger:    log,
		after:     func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		newKey:    uuid.NewString,
	}

	c.view.SummaryChanged(c.selection.Summary())
	c.view.PaymentFormVisible(false)
	c.view.SubmitEnabled(true)
	return c, nil
}

// Toggle flips a product in or out of the selection. Unknown ids are ignored and return false.
func (c *Checkout) Toggle(priceID string) bool {
	c.mu.Lock()
	ok := c.selection.Toggle(priceID)
	summary := c.selection.Summary()
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.view.SummaryChanged(summary)
	c.view.PaymentFormVisible(!summary.Empty())
	return true
}

// Summary returns the current order summary.
func (c *Checkout) Summary() pricing.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Summary()
}

// Submit runs one checkout attempt: tokenize the card, create the subscription and drive
// the handshake to a terminal outcome. A decline leaves the checkout ready for another try.
func (c *Checkout) Submit(ctx context.Context, card CardDetails, email string) (Terminal, error) {
	c.mu.Lock()
	switch {
	case c.concluded:
		c.mu.Unlock()
		return Terminal{}, ErrAttemptConcluded
	case c.inFlight:
		c.mu.Unlock()
		return Terminal{}, ErrAttemptInFlight
	}
	ids := c.selection.IDs()
	if len(ids) == 0 {
		c.mu.Unlock()
		return Terminal{}, ErrEmptySelection
	}
	c.inFlight = true
	c.mu.Unlock()

	c.view.SubmitEnabled(false)
	c.view.ClearError()

	token, err := c.tokenizer.Tokenize(ctx, card, email)
	if err != nil {
		c.decline(declineReason(err))
		return Terminal{}, err
	}

	req := &models.CreateSubscriptionRequest{
		Email:         email,
		PaymentMethod: string(token),
		PriceIDs:      ids,
	}
	res, createErr := c.api.CreateSubscription(ctx, req, c.newKey())
	result := c.handshake.Run(ctx, res, createErr)

	c.mu.Lock()
	c.inFlight = false
	c.concluded = true
	c.mu.Unlock()

	c.logger.Info("checkout attempt concluded", "status", result.Status, "products", len(ids))
	c.view.OrderTerminal(result)
	return result, nil
}

func (c *Checkout) decline(reason string) {
	c.mu.Lock()
	c.inFlight = false
	c.errGen++
	gen := c.errGen
	c.mu.Unlock()

	c.view.SubmitEnabled(true)
	c.view.ShowError(reason)
	c.after(DeclineMessageTTL, func() {
		c.mu.Lock()
		current := c.errGen == gen
		c.mu.Unlock()
		if current {
			c.view.ClearError()
		}
	})
}
