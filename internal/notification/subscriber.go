package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/referralkit/commission-ledger/internal/core/events"
)

// Notifier is the outbound channel for beneficiary-facing messages (email,
// chat webhooks). Delivery is best effort: the ledger never waits on it.
type Notifier interface {
	Notify(ctx context.Context, beneficiaryID int64, subject, body string) error
}

// LogNotifier writes notifications to the log. It stands in wherever no
// real channel is configured, and keeps the event wiring observable in
// development.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, beneficiaryID int64, subject, body string) error {
	n.Logger.Info("notification",
		"beneficiary_id", beneficiaryID,
		"subject", subject,
		"body", body)
	return nil
}

// EventHandler turns ledger events into beneficiary notifications.
type EventHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewEventHandler(notifier Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandleEarningCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.EarningCreatedEvent)
	if !ok {
		return fmt.Errorf("expected EarningCreatedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, e.BeneficiaryID,
		"New commission earned",
		fmt.Sprintf("You earned a tier-%d commission of %d (%s). It becomes eligible for payout after the hold period.",
			e.TierLevel, e.CommissionAmount, e.Currency))
}

func (h *EventHandler) HandleEarningsMatured(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.EarningsMaturedEvent)
	if !ok {
		return fmt.Errorf("expected EarningsMaturedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, e.BeneficiaryID,
		"Commissions available for payout",
		fmt.Sprintf("%d of your commissions cleared the hold period and can now be paid out.", e.MaturedCount))
}

func (h *EventHandler) HandlePayoutPaid(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PayoutPaidEvent)
	if !ok {
		return fmt.Errorf("expected PayoutPaidEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, e.BeneficiaryID,
		"Payout completed",
		fmt.Sprintf("Your payout of %d covering %d commissions has been paid.", e.Amount, e.EarningsPaid))
}

func (h *EventHandler) HandlePayoutReleased(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PayoutReleasedEvent)
	if !ok {
		return fmt.Errorf("expected PayoutReleasedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, e.BeneficiaryID,
		"Payout not completed",
		fmt.Sprintf("Your payout ended %s (%s). The commissions were returned to your available balance.",
			e.FinalStatus, e.FailureCode))
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeEarningCreated, h.HandleEarningCreated)
	eventBus.Subscribe(events.EventTypeEarningsMatured, h.HandleEarningsMatured)
	eventBus.Subscribe(events.EventTypePayoutPaid, h.HandlePayoutPaid)
	eventBus.Subscribe(events.EventTypePayoutReleased, h.HandlePayoutReleased)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{
			events.EventTypeEarningCreated,
			events.EventTypeEarningsMatured,
			events.EventTypePayoutPaid,
			events.EventTypePayoutReleased,
		})
}
