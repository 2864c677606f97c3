// Package fulfillment turns verified payment-completion events into the
// purchase, transaction, and license records that entitle a buyer to a
// download, exactly once per external payment reference, no matter how
// many times the provider delivers the event.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/metrics"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stripe/stripe-go/v82"
)

// Store defines the persistence operations the pipeline needs.
type Store interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetPurchaseByPaymentRef(ctx context.Context, ref string) (*models.Purchase, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetTransactionByPurchaseID(ctx context.Context, purchaseID int64) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetLicenseByPurchaseID(ctx context.Context, purchaseID int64) (*models.License, error)
	CreateLicense(ctx context.Context, l *models.License) error
	UpdateWebhookLogStatus(ctx context.Context, id int64, status models.WebhookLogStatus, errorMessage string) error
}

// Config holds the static fulfillment policy.
type Config struct {
	// PlatformFeePercent is the marketplace's cut of the gross charge.
	PlatformFeePercent int
	// DefaultRentalDays is the rental window used when a product has no
	// rental period configured.
	DefaultRentalDays int
}

// Pipeline processes completed-checkout events.
type Pipeline struct {
	store  Store
	cfg    Config
	fm     *metrics.Fulfillment
	logger zerolog.Logger

	// Overridable for tests.
	now           func() time.Time
	newLicenseKey func() string
}

// New creates a Pipeline. fm may be nil when metrics are not wanted.
func New(store Store, cfg Config, fm *metrics.Fulfillment, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:         store,
		cfg:           cfg,
		fm:            fm,
		logger:        logger.With().Str("component", "fulfillment").Logger(),
		now:           time.Now,
		newLicenseKey: auth.GenerateLicenseKey,
	}
}

// Result reports what Process did with an event.
type Result struct {
	PurchaseID int64
	// Duplicate is true when a purchase already existed for the payment
	// reference and no purchase row was written.
	Duplicate bool
	// PartialErr is set when the purchase is durably committed but a
	// transaction or license write failed. The event must still be
	// acknowledged; the reconciler repairs it out of band.
	PartialErr error
}

// Process fulfills one completed checkout. Errors returned from Process
// all precede the purchase commit and are safe to retry; once the
// purchase row exists, later failures surface only through
// Result.PartialErr.
func (p *Pipeline) Process(ctx context.Context, cc *CompletedCheckout) (*Result, error) {
	log := p.logger.With().
		Str("payment_ref", cc.PaymentRef).
		Int64("product_id", cc.ProductID).
		Int64("buyer_id", cc.BuyerID).
		Str("kind", string(cc.Kind)).
		Logger()

	// Fast path: the event was already fulfilled. A prior read is not the
	// idempotency guarantee (the unique constraint below is), it just
	// avoids burning a license key on every redelivery.
	existing, err := p.store.GetPurchaseByPaymentRef(ctx, cc.PaymentRef)
	switch {
	case err == nil:
		log.Info().Int64("purchase_id", existing.ID).Msg("duplicate delivery, purchase exists")
		if p.fm != nil {
			p.fm.Duplicates.Inc()
		}
		return p.finish(ctx, log, existing, cc, true), nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, fmt.Errorf("look up purchase: %w", err)
	}

	endDate, err := p.rentalEnd(ctx, cc)
	if err != nil {
		return nil, err
	}

	now := p.now()
	purchase := &models.Purchase{
		BuyerID:    cc.BuyerID,
		ProductID:  cc.ProductID,
		Kind:       cc.Kind,
		StartDate:  now,
		EndDate:    endDate,
		LicenseKey: p.newLicenseKey(),
		PaymentRef: cc.PaymentRef,
		// The provider already completed the charge; no pending state is
		// observed in this flow.
		Status:    models.PurchaseStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.store.CreatePurchase(ctx, purchase); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Lost the race with a concurrent duplicate delivery. The
			// winner's purchase is the one true record.
			winner, readErr := p.store.GetPurchaseByPaymentRef(ctx, cc.PaymentRef)
			if readErr != nil {
				return nil, fmt.Errorf("read purchase after conflict: %w", readErr)
			}
			log.Info().Int64("purchase_id", winner.ID).Msg("concurrent duplicate delivery, using winner")
			if p.fm != nil {
				p.fm.Duplicates.Inc()
			}
			return p.finish(ctx, log, winner, cc, true), nil
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	log.Info().Int64("purchase_id", purchase.ID).Msg("purchase created")
	return p.finish(ctx, log, purchase, cc, false), nil
}

// finish ensures the transaction and license exist for a committed
// purchase. Failures here never propagate as errors: the purchase is
// durable, the caller must acknowledge, and the reconciler completes the
// missing writes later.
func (p *Pipeline) finish(ctx context.Context, log zerolog.Logger, purchase *models.Purchase, cc *CompletedCheckout, duplicate bool) *Result {
	res := &Result{PurchaseID: purchase.ID, Duplicate: duplicate}

	if err := p.ensureTransaction(ctx, purchase, cc); err != nil {
		res.PartialErr = err
	}
	if err := p.ensureLicense(ctx, purchase); err != nil {
		res.PartialErr = errors.Join(res.PartialErr, err)
	}

	if res.PartialErr != nil {
		log.Error().Err(res.PartialErr).Int64("purchase_id", purchase.ID).
			Msg("partial fulfillment, purchase committed without full ledger")
		if p.fm != nil {
			p.fm.PartialFailures.Inc()
		}
	} else if !duplicate {
		if p.fm != nil {
			p.fm.EventsProcessed.Inc()
		}
	}
	return res
}

// ensureTransaction writes the ledger entry if it is missing.
func (p *Pipeline) ensureTransaction(ctx context.Context, purchase *models.Purchase, cc *CompletedCheckout) error {
	_, err := p.store.GetTransactionByPurchaseID(ctx, purchase.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("look up transaction: %w", err)
	}

	fee, net := FeeSplit(cc.AmountCents, p.cfg.PlatformFeePercent)
	tx := &models.Transaction{
		PurchaseID:      purchase.ID,
		ProviderPayload: cc.Raw,
		AmountCents:     cc.AmountCents,
		FeeCents:        fee,
		NetCents:        net,
		CreatedAt:       p.now(),
	}
	if err := p.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Another worker wrote it between our read and insert.
			return nil
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// ensureLicense writes the activation record if it is missing, reusing
// the key already committed on the purchase rather than regenerating it.
func (p *Pipeline) ensureLicense(ctx context.Context, purchase *models.Purchase) error {
	_, err := p.store.GetLicenseByPurchaseID(ctx, purchase.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("look up license: %w", err)
	}

	license := &models.License{
		PurchaseID:         purchase.ID,
		LicenseKey:         purchase.LicenseKey,
		ActivationsAllowed: 1,
		ActivationsUsed:    0,
		ExpiresAt:          purchase.EndDate,
		CreatedAt:          p.now(),
	}
	if err := p.store.CreateLicense(ctx, license); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return nil
		}
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// rentalEnd computes the rental end time for a rent acquisition: the
// product's configured rental period, or the default window when the
// product has none. Sales have no end time.
func (p *Pipeline) rentalEnd(ctx context.Context, cc *CompletedCheckout) (*time.Time, error) {
	if cc.Kind != models.PurchaseKindRent {
		return nil, nil
	}

	days := p.cfg.DefaultRentalDays
	product, err := p.store.GetProductByID(ctx, cc.ProductID)
	switch {
	case err == nil:
		if product.RentPeriodDays != nil && *product.RentPeriodDays > 0 {
			days = *product.RentPeriodDays
		}
	case errors.Is(err, errs.ErrNotFound):
		return nil, errs.Validationf("checkout references unknown product %d", cc.ProductID)
	default:
		return nil, fmt.Errorf("look up product: %w", err)
	}

	end := p.now().Add(time.Duration(days) * 24 * time.Hour)
	return &end, nil
}

// FeeSplit splits a gross amount into platform fee and seller net, both
// integer cents. The fee rounds half up, so fee + net == gross exactly.
func FeeSplit(grossCents int64, feePercent int) (fee, net int64) {
	fee = (grossCents*int64(feePercent) + 50) / 100
	net = grossCents - fee
	return fee, net
}

// ProcessEvent classifies and fulfills one verified provider event,
// updating the webhook log to reflect the outcome. It never returns an
// error for anything that happens after the purchase commit; the caller
// can always acknowledge the delivery.
func (p *Pipeline) ProcessEvent(ctx context.Context, event *stripe.Event, logEntry *models.WebhookLog) (*Result, error) {
	cc, err := ParseEvent(event)
	if err != nil {
		// Terminal: malformed metadata never becomes valid on retry.
		p.logger.Warn().Err(err).Str("event_id", event.ID).Msg("rejecting malformed checkout event")
		p.markLog(ctx, logEntry, models.WebhookLogStatusFailed, err.Error())
		return nil, err
	}
	if cc == nil {
		if p.fm != nil {
			p.fm.EventsIgnored.Inc()
		}
		p.markLog(ctx, logEntry, models.WebhookLogStatusProcessed, "")
		return nil, nil
	}

	res, err := p.Process(ctx, cc)
	if err != nil {
		// Nothing committed yet; leave the log unresolved so the
		// reconciler replays the event.
		p.markLog(ctx, logEntry, models.WebhookLogStatusFailed, err.Error())
		return nil, err
	}
	if res.PartialErr != nil {
		p.markLog(ctx, logEntry, models.WebhookLogStatusFailed, res.PartialErr.Error())
		return res, nil
	}

	p.markLog(ctx, logEntry, models.WebhookLogStatusProcessed, "")
	return res, nil
}

func (p *Pipeline) markLog(ctx context.Context, logEntry *models.WebhookLog, status models.WebhookLogStatus, msg string) {
	if logEntry == nil {
		return
	}
	if err := p.store.UpdateWebhookLogStatus(ctx, logEntry.ID, status, msg); err != nil {
		p.logger.Error().Err(err).Int64("webhook_log_id", logEntry.ID).Msg("failed to update webhook log")
	}
	logEntry.Status = status
	logEntry.ErrorMessage = msg
}
