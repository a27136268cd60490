// Package attribution decides which payee made each payment.
//
// A new payment starts pending. It can be confirmed three ways: a person
// picks the payee (manual, always wins), a card hint with a matching amount
// names a registered card (email_card) or an unregistered one (default_rule),
// or its pending window runs out and the sweep hands it to the default payee
// (auto_timeout). Automatic paths only touch pending or unverified payments.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/domain/matcher"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/logging"
	"github.com/eshaffer321/utility-ledger/internal/infrastructure/storage"
)

// Service applies attribution rules
type Service struct {
	store   Store
	matcher *matcher.Matcher
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates an attribution service
func NewService(store Store, cfg matcher.Config, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		matcher: matcher.NewMatcher(cfg),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logging.OrDefault(logger),
	}
}

// WithClock overrides the clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AttributeManual confirms payeeID as the payer of paymentID regardless of
// the payment's current state
func (s *Service) AttributeManual(ctx context.Context, paymentID, payeeID int64) (*ledger.Payment, error) {
	payee, err := s.store.GetPayee(ctx, payeeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attr := ledger.Attribution{
		Status:       ledger.StatusConfirmed,
		PayeeID:      &payee.ID,
		Method:       ledger.MethodManual,
		AttributedAt: &now,
	}
	if _, err := s.store.UpdateAttribution(ctx, paymentID, attr); err != nil {
		return nil, err
	}

	s.logger.Info("payment attributed manually", "payment_id", paymentID, "payee", payee.Name)
	return s.store.GetPayment(ctx, paymentID)
}

// Clear resets a payment to unverified and removes its payee
func (s *Service) Clear(ctx context.Context, paymentID int64) (*ledger.Payment, error) {
	if _, err := s.store.UpdateAttribution(ctx, paymentID, ledger.Attribution{Status: ledger.StatusUnverified}); err != nil {
		return nil, err
	}
	s.logger.Info("payment attribution cleared", "payment_id", paymentID)
	return s.store.GetPayment(ctx, paymentID)
}

// ApplyCardHints matches hints against pending and unverified payments.
// A hint whose card is registered confirms that card's owner. A hint whose
// card is unknown confirms the default payee. Payments without a hint of
// matching amount are left alone.
func (s *Service) ApplyCardHints(ctx context.Context, hints []ledger.CardHint) (*MatchStats, error) {
	stats := &MatchStats{Hints: len(hints), Details: []MatchDetail{}}

	candidates, err := s.store.ListPayments(ctx, storage.PaymentFilter{Statuses: candidateStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate payments: %w", err)
	}
	stats.PaymentsChecked = len(candidates)

	s.logger.Info("applying card hints", "hints", len(hints), "candidates", len(candidates))

	matches := s.matcher.MatchAll(candidates, hints)
	defaultPayee, err := s.defaultPayee(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		payee, method, err := s.payeeForHint(ctx, m.Hint, defaultPayee)
		if err != nil {
			return stats, err
		}
		if payee == nil {
			s.logger.Warn("card not registered and no default payee",
				"payment_id", m.Payment.ID,
				"card", m.Hint.CardLastFour,
			)
			continue
		}

		now := s.now()
		attr := ledger.Attribution{
			Status:       ledger.StatusConfirmed,
			PayeeID:      &payee.ID,
			Method:       method,
			AttributedAt: &now,
		}
		if method == ledger.MethodEmailCard {
			attr.CardLastFour = m.Hint.CardLastFour
		}

		updated, err := s.store.UpdateAttribution(ctx, m.Payment.ID, attr, candidateStatuses...)
		if err != nil {
			return stats, fmt.Errorf("failed to attribute payment %d: %w", m.Payment.ID, err)
		}
		if !updated {
			// attributed by someone else since we listed it
			continue
		}

		if method == ledger.MethodEmailCard {
			stats.MatchedByCard++
		} else {
			stats.MatchedByDefault++
		}
		stats.Details = append(stats.Details, MatchDetail{
			PaymentID:    m.Payment.ID,
			Amount:       m.Payment.AmountRaw,
			CardLastFour: attr.CardLastFour,
			PayeeID:      payee.ID,
			PayeeName:    payee.Name,
			Method:       method,
		})
		s.logger.Info("payment attributed from card hint",
			"payment_id", m.Payment.ID,
			"payee", payee.Name,
			"method", method,
			"date_diff_days", m.DateDiff,
		)
	}

	stats.Unmatched = stats.PaymentsChecked - stats.MatchedByCard - stats.MatchedByDefault
	return stats, nil
}

func (s *Service) payeeForHint(ctx context.Context, hint ledger.CardHint, defaultPayee *ledger.PayeeUser) (*ledger.PayeeUser, ledger.AttributionMethod, error) {
	if hint.CardLastFour != "" {
		owner, err := s.store.GetPayeeByCard(ctx, hint.CardLastFour)
		switch {
		case err == nil:
			return owner, ledger.MethodEmailCard, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, ledger.MethodNone, fmt.Errorf("failed to look up card %s: %w", hint.CardLastFour, err)
		}
	}
	if defaultPayee == nil {
		return nil, ledger.MethodNone, nil
	}
	return defaultPayee, ledger.MethodDefaultRule, nil
}

// defaultPayee returns nil without error when none is configured
func (s *Service) defaultPayee(ctx context.Context) (*ledger.PayeeUser, error) {
	payee, err := s.store.GetDefaultPayee(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default payee: %w", err)
	}
	return payee, nil
}

// SweepExpired gives every pending, unattributed payment whose window ended
// before now to the default payee. Without a default payee nothing changes
// and ErrNoDefaultPayee is returned alongside the expired count.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (*SweepResult, error) {
	expired, err := s.store.ListPayments(ctx, storage.PaymentFilter{
		Statuses:       []ledger.AttributionStatus{ledger.StatusPending},
		Unattributed:   true,
		PendingExpired: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expired payments: %w", err)
	}

	result := &SweepResult{Expired: len(expired)}
	if len(expired) == 0 {
		return result, nil
	}

	payee, err := s.defaultPayee(ctx)
	if err != nil {
		return nil, err
	}
	if payee == nil {
		s.logger.Warn("pending payments expired but no default payee is configured", "count", len(expired))
		return result, ErrNoDefaultPayee
	}
	result.PayeeID = payee.ID
	result.PayeeName = payee.Name

	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		attributedAt := s.now()
		attr := ledger.Attribution{
			Status:       ledger.StatusConfirmed,
			PayeeID:      &payee.ID,
			Method:       ledger.MethodAutoTimeout,
			AttributedAt: &attributedAt,
		}
		updated, err := s.store.UpdateAttribution(ctx, p.ID, attr, ledger.StatusPending)
		if err != nil {
			return result, fmt.Errorf("failed to attribute payment %d: %w", p.ID, err)
		}
		if updated {
			result.Attributed++
		}
	}

	s.logger.Info("pending payments attributed to default payee",
		"count", result.Attributed,
		"payee", payee.Name,
	)
	return result, nil
}
