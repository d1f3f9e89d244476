// Package billing drives plan selection, payment tokenization and the
// subscription create/cancel lifecycle.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/tax-portal/internal/catalog"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/notice"
	"github.com/joseph-ayodele/tax-portal/internal/payment"
	"github.com/joseph-ayodele/tax-portal/internal/transfer"
)

type Phase string

const (
	PhaseLoading        Phase = "loading"
	PhaseLoadFailed     Phase = "load_failed"
	PhaseReady          Phase = "ready"
	PhasePlanSelected   Phase = "plan_selected"
	PhasePaymentPending Phase = "payment_pending"
)

// User-facing messages.
const (
	MsgLoadFailed      = "Failed to load subscription data"
	MsgSubscribed      = "Subscription created successfully!"
	MsgSubscribeFailed = "Subscription failed"
	MsgCanceled        = "Subscription canceled successfully"
	MsgCancelFailed    = "Failed to cancel subscription"
)

// API is the slice of the transfer client the orchestrator uses.
type API interface {
	ListPlans(ctx context.Context) (json.RawMessage, error)
	ListServices(ctx context.Context) (json.RawMessage, error)
	GetSubscription(ctx context.Context) (*entity.Subscription, error)
	CreateSubscription(ctx context.Context, planID, paymentMethodID string) (*entity.Subscription, error)
	CancelSubscription(ctx context.Context) error
}

// Snapshot is a read-only view of the orchestrator.
type Snapshot struct {
	Phase        Phase
	Plans        []entity.PlanDescriptor
	Services     []entity.ServiceDescriptor
	Subscription *entity.Subscription
	Selected     *entity.PlanDescriptor
}

// CanCancel reports whether the cancel control is enabled.
func (s Snapshot) CanCancel() bool {
	return s.Subscription != nil && s.Phase != PhasePaymentPending && s.Phase != PhaseLoading
}

// IsCurrentPlan reports whether id is the active subscription's plan.
func (s Snapshot) IsCurrentPlan(id string) bool {
	return s.Subscription != nil && s.Subscription.PlanType == id
}

// Orchestrator is safe for concurrent use; at most one payment or cancel is
// in flight at a time.
type Orchestrator struct {
	api       API
	tokenizer payment.Tokenizer
	notices   *notice.Board
	logger    *slog.Logger

	retryAttempts int
	retryBase     time.Duration
	newKey        func() string

	mu           sync.Mutex
	phase        Phase
	catalog      catalog.Catalog
	subscription *entity.Subscription
	selected     *entity.PlanDescriptor
	canceling    bool
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRetry bounds how often a transiently failing create-subscription call is repeated.
func WithRetry(attempts int, base time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.retryAttempts = attempts
		}
		o.retryBase = base
	}
}

func WithNotices(b *notice.Board) Option {
	return func(o *Orchestrator) { o.notices = b }
}

func New(api API, tokenizer payment.Tokenizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:           api,
		tokenizer:     tokenizer,
		retryAttempts: 3,
		retryBase:     500 * time.Millisecond,
		newKey:        func() string { return uuid.New().String() },
		phase:         PhaseLoading,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notices == nil {
		o.notices = notice.NewBoard()
	}
	o.logger = common.LoggerOrDefault(o.logger)
	return o
}

// Notices exposes the success/error banners.
func (o *Orchestrator) Notices() *notice.Board {
	return o.notices
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		Phase:    o.phase,
		Plans:    append([]entity.PlanDescriptor(nil), o.catalog.Plans...),
		Services: append([]entity.ServiceDescriptor(nil), o.catalog.Services...),
	}
	if o.subscription != nil {
		sub := *o.subscription
		snap.Subscription = &sub
	}
	if o.selected != nil {
		sel := *o.selected
		snap.Selected = &sel
	}
	return snap
}

// Load fetches plans, services and the current subscription concurrently.
// A failed subscription fetch counts as "no subscription"; a failed plan or
// service fetch fails the whole load.
func (o *Orchestrator) Load(ctx context.Context) error {
	o.mu.Lock()
	if o.phase == PhasePaymentPending || o.canceling {
		o.mu.Unlock()
		return common.ErrBusy
	}
	o.phase = PhaseLoading
	o.mu.Unlock()

	var (
		plans    []entity.PlanDescriptor
		services []entity.ServiceDescriptor
		sub      *entity.Subscription
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := o.api.ListPlans(gctx)
		if err != nil {
			return fmt.Errorf("list plans: %w", err)
		}
		plans, err = catalog.NormalizePlans(raw)
		return err
	})
	g.Go(func() error {
		raw, err := o.api.ListServices(gctx)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		services, err = catalog.NormalizeServices(raw)
		return err
	})
	g.Go(func() error {
		s, err := o.api.GetSubscription(gctx)
		if err != nil {
			o.logger.Warn("billing.load.subscription_degraded", "error", err)
			return nil
		}
		sub = s
		return nil
	})

	if err := g.Wait(); err != nil {
		o.mu.Lock()
		o.phase = PhaseLoadFailed
		o.mu.Unlock()
		o.notices.Error(MsgLoadFailed)
		o.logger.Error("billing.load.fail", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	cat := catalog.Catalog{Plans: plans, Services: services}
	if sub != nil {
		if _, ok := cat.Plan(sub.PlanType); !ok {
			o.logger.Warn("billing.load.unknown_plan", "plan_type", sub.PlanType)
		}
	}

	o.mu.Lock()
	o.catalog = cat
	o.subscription = sub
	o.selected = nil
	o.phase = PhaseReady
	o.mu.Unlock()
	o.logger.Info("billing.load.ok",
		"plans", len(plans),
		"services", len(services),
		"subscribed", sub != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// SelectPlan holds plan id for payment. Selecting again replaces the held plan.
func (o *Orchestrator) SelectPlan(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.phase == PhasePaymentPending || o.canceling:
		return common.ErrBusy
	case o.phase == PhaseReady, o.phase == PhasePlanSelected:
	default:
		return fmt.Errorf("select plan while %s: %w", o.phase, common.ErrInvalidState)
	}

	plan, ok := o.catalog.Plan(id)
	if !ok {
		return &common.ValidationError{Field: "plan", Value: id, Message: "Unknown plan"}
	}
	if o.subscription != nil && o.subscription.PlanType == id {
		return &common.ValidationError{Field: "plan", Value: id, Message: "This is already your current plan"}
	}
	o.selected = &plan
	o.phase = PhasePlanSelected
	o.notices.Clear(notice.Success)
	o.notices.Clear(notice.Error)
	return nil
}

// SubmitPayment tokenizes card and subscribes to the selected plan. The card
// is tokenized on every call since payment-method handles are single-use.
// On any failure the plan stays selected for a retry.
func (o *Orchestrator) SubmitPayment(ctx context.Context, card payment.Card) (*entity.Subscription, error) {
	o.mu.Lock()
	switch {
	case o.phase == PhasePaymentPending || o.canceling:
		o.mu.Unlock()
		return nil, common.ErrBusy
	case o.phase != PhasePlanSelected || o.selected == nil:
		o.mu.Unlock()
		return nil, common.NewValidationError("Please select a plan")
	}
	plan := *o.selected
	o.phase = PhasePaymentPending
	o.mu.Unlock()

	start := time.Now()
	pmID, err := o.tokenizer.Tokenize(ctx, card)
	if err != nil {
		o.backToSelected()
		msg := MsgSubscribeFailed
		var te *payment.TokenizationError
		if errors.As(err, &te) {
			msg = te.Message
		}
		o.notices.Error(msg)
		o.logger.Warn("billing.tokenize.fail", "plan", plan.ID, "error", err)
		return nil, err
	}

	key := o.newKey()
	kctx := common.WithIdempotencyKey(ctx, key)
	var sub *entity.Subscription
	err = common.Retry(kctx, o.retryAttempts, o.retryBase, transfer.IsTransient,
		func(ctx context.Context, attempt int) error {
			var cerr error
			sub, cerr = o.api.CreateSubscription(ctx, plan.ID, pmID)
			if cerr != nil {
				o.logger.Warn("billing.subscribe.attempt_fail",
					"plan", plan.ID, "attempt", attempt, "idempotency_key", key, "error", cerr)
			}
			return cerr
		})
	if err != nil {
		o.backToSelected()
		o.notices.Error(transfer.UserMessage(err, MsgSubscribeFailed))
		o.logger.Error("billing.subscribe.fail", "plan", plan.ID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	o.mu.Lock()
	o.subscription = sub
	o.selected = nil
	o.phase = PhaseReady
	o.mu.Unlock()
	o.notices.Success(MsgSubscribed)
	o.logger.Info("billing.subscribe.ok", "plan", plan.ID, "subscription_id", sub.ID,
		"elapsed_ms", time.Since(start).Milliseconds())
	return sub, nil
}

func (o *Orchestrator) backToSelected() {
	o.mu.Lock()
	o.phase = PhasePlanSelected
	o.mu.Unlock()
}

// Cancel ends the current subscription. It is only allowed while a
// subscription exists; on failure the subscription is left untouched.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.phase == PhasePaymentPending || o.canceling:
		o.mu.Unlock()
		return common.ErrBusy
	case o.phase == PhaseLoading || o.phase == PhaseLoadFailed:
		o.mu.Unlock()
		return fmt.Errorf("cancel while %s: %w", o.phase, common.ErrInvalidState)
	case o.subscription == nil:
		o.mu.Unlock()
		return common.ErrNoSubscription
	}
	o.canceling = true
	planType := o.subscription.PlanType
	o.mu.Unlock()

	err := o.api.CancelSubscription(ctx)

	o.mu.Lock()
	o.canceling = false
	if err == nil {
		o.subscription = nil
	}
	o.mu.Unlock()

	if err != nil {
		o.notices.Error(transfer.UserMessage(err, MsgCancelFailed))
		o.logger.Error("billing.cancel.fail", "plan", planType, "error", err)
		return err
	}
	o.notices.Success(MsgCanceled)
	o.logger.Info("billing.cancel.ok", "plan", planType)
	return nil
}

// PurchaseService acknowledges a one-time service selection. No payment is
// taken and subscription state is never touched.
func (o *Orchestrator) PurchaseService(id string) (string, error) {
	o.mu.Lock()
	svc, ok := o.catalog.Service(id)
	o.mu.Unlock()
	if !ok {
		return "", &common.ValidationError{Field: "service", Value: id, Message: "Unknown service"}
	}
	msg := fmt.Sprintf("Purchase %s for %s - Feature coming soon!", svc.Name, svc.Price.Display())
	o.notices.Success(msg)
	o.logger.Info("billing.service.acknowledged", "service", id)
	return msg, nil
}
