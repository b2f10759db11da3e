package checkout

import (
	"context"
	"errors"

	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/models"
)

// Terminal statuses shown when an attempt fails before a subscription status is known.
const (
	StatusCreateError  = "Error creating subscription"
	StatusConfirmError = "Error confirming subscription"
)

const unreachableMessage = "We could not reach the store. Please try again."

// State is a step of the post-creation handshake.
type State int

const (
	StateCreated State = iota
	StatePendingAuthentication
	StateConfirming
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePendingAuthentication:
		return "pending_authentication"
	case StateConfirming:
		return "confirming"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Terminal is the outcome shown to the buyer once an attempt is over.
type Terminal struct {
	Subscription *models.SubscriptionResource
	Status       string
	Message      string
	Err          error
	Path         []State
}

// Failed reports whether the attempt ended without a subscription status.
func (t Terminal) Failed() bool { return t.Err != nil }

type step struct {
	state    State
	res      *models.SubscriptionResource
	terminal Terminal
}

// Handshake moves a freshly created subscription through authentication and confirmation.
type Handshake struct {
	auth      Authenticator
	finalizer Finalizer
	logger    logger.Logger
}

// NewHandshake creates a handshake. A nil logger discards output.
func NewHandshake(auth Authenticator, finalizer Finalizer, log logger.Logger) *Handshake {
	if log == nil {
		log = logger.Discard()
	}
	return &Handshake{auth: auth, finalizer: finalizer, logger: log}
}

// Run drives the state machine from the create-subscription result to a terminal outcome.
// Confirmation is requested at most once per run.
func (h *Handshake) Run(ctx context.Context, res *models.SubscriptionResource, createErr error) Terminal {
	path := []State{StateCreated}
	st := h.created(ctx, res, createErr)
	for st.state != StateFinalized {
		path = append(path, st.state)
		switch st.state {
		case StatePendingAuthentication:
			st = h.pendingAuthentication(ctx, st.res)
		case StateConfirming:
			st = h.confirming(ctx, st.res)
		default:
			st = step{state: StateFinalized, terminal: failure(StatusConfirmError, errors.New("handshake entered an unknown state"))}
		}
	}
	path = append(path, StateFinalized)
	st.terminal.Path = path
	return st.terminal
}

// created handles the create-subscription result. Without a pending challenge it
// confirms right away.
func (h *Handshake) created(ctx context.Context, res *models.SubscriptionResource, createErr error) step {
	if createErr != nil {
		h.logger.Warn("subscription creation failed", "error", createErr)
		return step{state: StateFinalized, terminal: failure(StatusCreateError, createErr)}
	}
	if err := res.Validate(); err != nil {
		return step{state: StateFinalized, terminal: failure(StatusCreateError, domain.NewUnexpectedResponseError(err))}
	}
	if res.RequiresAuthentication() {
		return step{state: StatePendingAuthentication, res: res}
	}
	return h.finalize(ctx, res.ID)
}

// pendingAuthentication runs the payment challenge. Confirmation follows either way so
// the server reports the real subscription status.
func (h *Handshake) pendingAuthentication(ctx context.Context, res *models.SubscriptionResource) step {
	if err := h.auth.Authenticate(ctx, res.ChallengeSecret()); err != nil {
		h.logger.Warn("payment authentication failed", "subscription_id", res.ID, "error", err)
	}
	return step{state: StateConfirming, res: res}
}

func (h *Handshake) confirming(ctx context.Context, res *models.SubscriptionResource) step {
	return h.finalize(ctx, res.ID)
}

func (h *Handshake) finalize(ctx context.Context, subscriptionID string) step {
	final, err := h.finalizer.ConfirmSubscription(ctx, subscriptionID)
	if err != nil {
		h.logger.Warn("subscription confirmation failed", "subscription_id", subscriptionID, "error", err)
		return step{state: StateFinalized, terminal: failure(StatusConfirmError, err)}
	}
	if err := final.Validate(); err != nil {
		return step{state: StateFinalized, terminal: failure(StatusConfirmError, domain.NewUnexpectedResponseError(err))}
	}
	h.logger.Info("subscription finalized", "subscription_id", final.ID, "status", final.Status)
	return step{state: StateFinalized, terminal: Terminal{Subscription: final, Status: final.Status}}
}

func failure(status string, err error) Terminal {
	return Terminal{Status: status, Message: buyerMessage(err), Err: err}
}

func buyerMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return unreachableMessage
}
