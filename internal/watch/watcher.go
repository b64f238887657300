// Package watch runs the polling loop that checks the portal for open
// appointment slots and reacts to findings.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/easyslot/easyslot/internal/config"
	"github.com/easyslot/easyslot/internal/log"
	"github.com/easyslot/easyslot/internal/metrics"
	"github.com/easyslot/easyslot/internal/notify"
	"github.com/easyslot/easyslot/internal/portal"
	"github.com/easyslot/easyslot/internal/state"
)

// consecutive check failures before the loop gives up
const maxConsecutiveErrors = 3

// Portal is the part of a portal session the watcher drives.
type Portal interface {
	Login(ctx context.Context) error
	NavigateToReschedule(ctx context.Context) error
	CheckSlots(ctx context.Context) (*portal.Slot, error)
	Book(ctx context.Context, slot portal.Slot) error
	Refresh(ctx context.Context) error
	Close()
}

// Options wires a watcher together.
type Options struct {
	Account    config.Account
	Monitoring config.Monitoring
	Session    Portal
	Notifier   notify.Notifier
	Seen       notify.SeenCache
	States     *state.Manager
	Metrics    *metrics.Metrics
	Clock      clockwork.Clock
}

// Watcher polls the portal for one account until a slot is booked, the
// context is cancelled or an unrecoverable error occurs.
type Watcher struct {
	account    config.Account
	monitoring config.Monitoring
	session    Portal
	notifier   notify.Notifier
	seen       notify.SeenCache
	states     *state.Manager
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     *slog.Logger

	stats Stats
}

func New(opts Options) *Watcher {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Seen == nil {
		opts.Seen = notify.NewMemorySeen(opts.Monitoring.CheckInterval*10, opts.Clock)
	}
	return &Watcher{
		account:    opts.Account,
		monitoring: opts.Monitoring,
		session:    opts.Session,
		notifier:   opts.Notifier,
		seen:       opts.Seen,
		states:     opts.States,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		logger:     slog.With(slog.String("account", opts.Account.Name)),
		stats:      Stats{Account: opts.Account.Name},
	}
}

func (w *Watcher) dateRange() string {
	dr := w.account.Appointment.DateRange
	return fmt.Sprintf("%s to %s", dr.StartDate, dr.EndDate)
}

func (w *Watcher) email() string { return w.account.Credentials.Email }

// Run executes the watch loop. It returns nil after a successful booking
// or when the context is cancelled, and an error when the loop cannot
// continue.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = log.ContextWithLogger(ctx, w.logger)
	defer w.session.Close()

	w.metrics.WatcherUp.WithLabelValues(w.account.Name).Set(1)
	defer w.metrics.WatcherUp.WithLabelValues(w.account.Name).Set(0)
	defer w.states.Update(w.email(), state.StatusStopped, w.dateRange(), "", false, "")

	if err := w.session.Login(ctx); err != nil {
		w.states.SetLoginState(w.email(), false)
		w.notifyFailure(ctx, err)
		return fmt.Errorf("login failed for %s: %w", w.account.Name, err)
	}
	w.states.SetLoginState(w.email(), true)

	if err := w.session.NavigateToReschedule(ctx); err != nil {
		w.notifyFailure(ctx, err)
		return fmt.Errorf("failed to reach reschedule page for %s: %w", w.account.Name, err)
	}

	subject, body := notify.MonitoringStarted(
		w.account.Appointment.PreferredCities,
		w.account.Appointment.DateRange,
		w.account.Appointment.AutoBook,
	)
	w.notify(ctx, subject, body)
	w.states.Update(w.email(), state.StatusWatching, w.dateRange(), "", false, "")
	w.logger.Info("started watching",
		slog.Any("cities", w.account.Appointment.PreferredCities),
		slog.String("range", w.dateRange()),
		slog.Bool("auto_book", w.account.Appointment.AutoBook))

	consecutiveErrors := 0
	for {
		booked, err := w.checkOnce(ctx)
		if booked {
			return nil
		}
		if err != nil {
			consecutiveErrors++
			w.stats.Errors++
			w.metrics.ErrorsTotal.WithLabelValues(w.account.Name).Inc()
			w.states.Update(w.email(), state.StatusError, w.dateRange(), "", false, err.Error())
			w.notifyFailure(ctx, err)
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("giving up after %d consecutive failed checks: %w", consecutiveErrors, err)
			}
			w.logger.Warn("check failed, retrying after interval",
				slog.String("err", err.Error()), slog.Duration("interval", w.monitoring.RetryInterval))
			if !w.sleep(ctx, w.monitoring.RetryInterval) {
				return nil
			}
		} else {
			consecutiveErrors = 0
			if !w.sleep(ctx, w.monitoring.CheckInterval) {
				return nil
			}
		}

		if err := w.session.Refresh(ctx); err != nil {
			w.logger.Warn("failed to refresh page", slog.String("err", err.Error()))
		}
	}
}

// checkOnce performs one poll. It reports whether a slot was booked.
func (w *Watcher) checkOnce(ctx context.Context) (bool, error) {
	w.stats.Checks++
	w.metrics.ChecksTotal.WithLabelValues(w.account.Name).Inc()

	slot, err := w.session.CheckSlots(ctx)
	if err != nil {
		return false, err
	}
	if slot == nil {
		w.states.Update(w.email(), state.StatusWatching, w.dateRange(), "", false, "")
		return false, nil
	}

	w.stats.SlotsFound++
	w.metrics.SlotsFoundTotal.WithLabelValues(w.account.Name, slot.City).Inc()
	w.states.Update(w.email(), state.StatusSlotFound, w.dateRange(), slot.City, true,
		fmt.Sprintf("open slot on %s", slot.Date))

	if w.account.Appointment.AutoBook {
		if err := w.session.Book(ctx, *slot); err != nil {
			w.logger.Error("booking failed", slog.String("err", err.Error()))
			w.notifyFailure(ctx, err)
			return false, nil
		}
		w.stats.Booked = true
		w.metrics.BookingsTotal.WithLabelValues(w.account.Name).Inc()
		w.states.Update(w.email(), state.StatusBooked, w.dateRange(), slot.City, true,
			fmt.Sprintf("booked for %s", slot.Date))
		subject, body := notify.Booked(slot.City, slot.Date)
		w.notify(ctx, subject, body)
		return true, nil
	}

	first, err := w.seen.MarkIfUnseen(ctx, slot.City, slot.Date)
	if err != nil {
		w.logger.Warn("seen cache unavailable, notifying anyway", slog.String("err", err.Error()))
		first = true
	}
	if first {
		subject, body := notify.SlotFound(slot.City, slot.Date)
		w.notify(ctx, subject, body)
	} else {
		w.logger.Debug("slot already announced, skipping notification",
			slog.String("city", slot.City), slog.String("date", slot.Date))
	}
	return false, nil
}

// sleep waits for d or until the context is cancelled. It reports
// whether the loop should continue.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	w.logger.Debug("waiting before next check", slog.Duration("interval", d))
	select {
	case <-w.clock.After(d):
		return true
	case <-ctx.Done():
		w.logger.Info("watch loop cancelled")
		return false
	}
}

func (w *Watcher) notify(ctx context.Context, subject, body string) {
	if err := w.notifier.Notify(ctx, subject, body); err != nil {
		w.metrics.NotifyFailures.Inc()
		w.logger.Error("failed to send notification", slog.String("err", err.Error()))
	}
}

func (w *Watcher) notifyFailure(ctx context.Context, err error) {
	subject, body := notify.Failure(err)
	w.notify(ctx, subject, body)
}

// Stats returns the counters of this watcher run.
func (w *Watcher) Stats() Stats {
	return w.stats
}
