package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/metrics"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stripe/stripe-go/v82"
)

// ReconcilerStore defines the persistence operations the reconciler needs
// beyond the pipeline's own store.
type ReconcilerStore interface {
	ListUnresolvedWebhookLogs(ctx context.Context, stuckAfter time.Duration, limit int) ([]*models.WebhookLog, error)
	UpdateWebhookLogStatus(ctx context.Context, id int64, status models.WebhookLogStatus, errorMessage string) error
}

// Reconciler repairs partial fulfillment out of band: it replays webhook
// deliveries that failed after acknowledgment, or that never finished,
// through the idempotent pipeline. Replays reuse the license key already
// committed on the purchase and recompute the fee split; they never
// create a second purchase.
type Reconciler struct {
	pipeline *Pipeline
	store    ReconcilerStore
	fm       *metrics.Fulfillment
	logger   zerolog.Logger

	interval   time.Duration
	stuckAfter time.Duration
	batchSize  int

	cron *cron.Cron
}

// NewReconciler creates a Reconciler sweeping at the given interval.
func NewReconciler(pipeline *Pipeline, store ReconcilerStore, fm *metrics.Fulfillment, interval time.Duration, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		pipeline:   pipeline,
		store:      store,
		fm:         fm,
		logger:     logger.With().Str("component", "reconciler").Logger(),
		interval:   interval,
		stuckAfter: 10 * time.Minute,
		batchSize:  100,
	}
}

// Start schedules periodic sweeps. Call Stop on shutdown.
func (r *Reconciler) Start() error {
	if r.cron != nil {
		return errors.New("reconciler already started")
	}
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.interval)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("reconciliation sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}
	r.cron = c
	c.Start()
	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")
	return nil
}

// Stop halts scheduled sweeps and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
	r.logger.Info().Msg("reconciler stopped")
}

// RunOnce performs a single reconciliation sweep and returns the number
// of deliveries it resolved.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	logs, err := r.store.ListUnresolvedWebhookLogs(ctx, r.stuckAfter, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unresolved webhook logs: %w", err)
	}

	resolved := 0
	for _, logEntry := range logs {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		if r.replay(ctx, logEntry) {
			resolved++
			if r.fm != nil {
				r.fm.Reconciled.Inc()
			}
		}
	}

	if len(logs) > 0 {
		r.logger.Info().Int("candidates", len(logs)).Int("resolved", resolved).Msg("reconciliation sweep finished")
	}
	return resolved, nil
}

// replay re-runs one logged delivery through the pipeline. Returns true
// when the log reached a terminal state.
func (r *Reconciler) replay(ctx context.Context, logEntry *models.WebhookLog) bool {
	log := r.logger.With().Int64("webhook_log_id", logEntry.ID).Str("event_id", logEntry.EventID).Logger()

	var event stripe.Event
	if err := json.Unmarshal(logEntry.Payload, &event); err != nil {
		// The stored payload is unreadable; replaying will never help.
		log.Error().Err(err).Msg("stored webhook payload is malformed, abandoning")
		r.mark(ctx, logEntry, models.WebhookLogStatusProcessed, "abandoned: "+err.Error())
		return true
	}

	res, err := r.pipeline.ProcessEvent(ctx, &event, logEntry)
	switch {
	case errors.Is(err, errs.ErrValidation):
		// Terminal: bad metadata will not improve with age. Keep the
		// message but stop retrying.
		r.mark(ctx, logEntry, models.WebhookLogStatusProcessed, "abandoned: "+logEntry.ErrorMessage)
		return true
	case err != nil:
		log.Warn().Err(err).Msg("replay failed, will retry next sweep")
		return false
	case res != nil && res.PartialErr != nil:
		log.Warn().Err(res.PartialErr).Msg("replay left partial state, will retry next sweep")
		return false
	}

	log.Info().Msg("delivery reconciled")
	return true
}

func (r *Reconciler) mark(ctx context.Context, logEntry *models.WebhookLog, status models.WebhookLogStatus, msg string) {
	if err := r.store.UpdateWebhookLogStatus(ctx, logEntry.ID, status, msg); err != nil {
		r.logger.Error().Err(err).Int64("webhook_log_id", logEntry.ID).Msg("failed to update webhook log")
	}
}
