// Package portal drives the appointment portal through a Chrome tab:
// signing in, navigating to the reschedule page, reading the facility
// calendar and booking slots.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/easyslot/easyslot/internal/config"
	"github.com/easyslot/easyslot/internal/dates"
	"github.com/easyslot/easyslot/internal/log"
	"github.com/easyslot/easyslot/internal/retry"
)

// ErrLoginFailed indicates the portal rejected the credentials. Retrying
// will not help.
var ErrLoginFailed = errors.New("login failed")

// Slot is an open appointment slot within the configured window.
type Slot struct {
	City string `json:"city"`
	Date string `json:"date"`
}

// Session owns one browser tab on the portal. All operations are
// sequential and blocking; a Session must not be shared across
// goroutines.
type Session struct {
	baseURL          string
	account          config.Account
	maxLoginAttempts int
	debugDir         string
	debugEnabled     bool

	tabCtx context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// OnLoginRetry, if set, is called once per retried login attempt.
	OnLoginRetry func()
}

// NewSession opens a new browser tab on the given allocator context.
func NewSession(allocCtx context.Context, cfg *config.Config, account config.Account) *Session {
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	return &Session{
		baseURL:          cfg.BaseURL,
		account:          account,
		maxLoginAttempts: cfg.Monitoring.MaxLoginAttempts,
		debugDir:         cfg.Debug.Dir,
		debugEnabled:     cfg.Debug.Enabled,
		tabCtx:           tabCtx,
		cancel:           cancel,
		logger:           slog.With(slog.String("account", account.Name)),
	}
}

// Close tears down the browser tab.
func (s *Session) Close() {
	s.cancel()
}

// run executes chromedp actions on the session tab, bounded by timeout.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Login signs in to the portal, retrying transient failures up to the
// configured number of attempts.
func (s *Session) Login(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx)

	classify := func(err error) retry.Action {
		if errors.Is(err, ErrLoginFailed) {
			return retry.Stop
		}
		return retry.Retry
	}
	policy := retry.Policy{
		MaxAttempts:    s.maxLoginAttempts,
		InitialBackoff: 2 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			if s.OnLoginRetry != nil {
				s.OnLoginRetry()
			}
			logger.Warn("login attempt failed, retrying",
				slog.Int("attempt", attempt), slog.String("err", err.Error()), slog.Duration("backoff", backoff))
		},
	}

	return retry.DoVoid(ctx, policy, classify, func() error {
		return s.loginOnce(logger)
	})
}

func (s *Session) loginOnce(logger *slog.Logger) error {
	signInURL := s.baseURL + "/users/sign_in"
	logger.Info("loading sign-in page", slog.String("url", signInURL))
	if err := s.run(30*time.Second, chromedp.Navigate(signInURL)); err != nil {
		return fmt.Errorf("failed to load sign-in page: %w", err)
	}

	s.dismissInfoOverlay(logger)

	if err := s.fillSignInForm(); err != nil {
		s.SaveDebugInfo("login_error")
		return err
	}

	if err := s.verifyLogin(logger); err != nil {
		s.SaveDebugInfo("login_error")
		return err
	}
	logger.Info("signed in")
	return nil
}

// dismissInfoOverlay clicks away the "Important Information" overlay
// that sometimes covers the sign-in form. Its absence is not an error.
func (s *Session) dismissInfoOverlay(logger *slog.Logger) {
	err := s.run(5*time.Second,
		chromedp.WaitVisible(InfoOverlayArrowSelector, chromedp.ByQuery),
		chromedp.Click(InfoOverlayArrowSelector, chromedp.ByQuery),
	)
	if err != nil {
		logger.Debug("no information overlay found")
		return
	}
	logger.Debug("dismissed information overlay")
}

func (s *Session) fillSignInForm() error {
	err := s.run(15*time.Second,
		chromedp.WaitVisible(SignInFormSelector, chromedp.ByQuery),
		chromedp.Clear(EmailFieldSelector, chromedp.ByQuery),
		chromedp.SendKeys(EmailFieldSelector, s.account.Credentials.Email, chromedp.ByQuery),
		chromedp.Clear(PasswordFieldSelector, chromedp.ByQuery),
		chromedp.SendKeys(PasswordFieldSelector, s.account.Credentials.Password, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill sign-in form: %w", err)
	}

	if err := s.confirmPolicy(); err != nil {
		return err
	}

	if err := s.run(10*time.Second,
		chromedp.Click(SignInButtonSelector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to submit sign-in form: %w", err)
	}
	return nil
}

// confirmPolicy ticks the privacy policy checkbox. The portal renders a
// styled container on top of the real input, so clicking the container
// does not always stick; as a last resort the input is checked via js
// with a change event.
func (s *Session) confirmPolicy() error {
	checkedJS := fmt.Sprintf(policyCheckedJS, PolicyCheckboxSelector)
	forceCheckJS := fmt.Sprintf(policyForceCheckJS, PolicyCheckboxSelector)

	var checked bool
	err := s.run(10*time.Second,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := chromedp.Evaluate(checkedJS, &checked).Do(ctx); err != nil {
				return err
			}
			if checked {
				return nil
			}
			if err := chromedp.Click(PolicyContainerSelector, chromedp.ByQuery).Do(ctx); err == nil {
				if err := chromedp.Evaluate(checkedJS, &checked).Do(ctx); err != nil {
					return err
				}
				if checked {
					return nil
				}
			}
			if err := chromedp.Evaluate(forceCheckJS, &checked).Do(ctx); err != nil {
				return err
			}
			if !checked {
				return errors.New("policy checkbox could not be selected")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to confirm privacy policy: %w", err)
	}
	return nil
}

func (s *Session) verifyLogin(logger *slog.Logger) error {
	for _, sel := range loginSuccessSelectors {
		if err := s.run(3*time.Second,
			chromedp.WaitVisible(sel, chromedp.BySearch),
		); err == nil {
			logger.Debug("found login success indicator", slog.String("selector", sel))
			return nil
		}
	}

	var errText string
	if err := s.run(3*time.Second,
		chromedp.Text(ErrorMessageSelector, &errText, chromedp.ByQuery, chromedp.AtLeast(0)),
	); err == nil && strings.TrimSpace(errText) != "" {
		return fmt.Errorf("%w: %s", ErrLoginFailed, strings.TrimSpace(errText))
	}
	return errors.New("login could not be verified, no success indicator found")
}

// NavigateToReschedule brings the session from the appointment overview
// to the reschedule page of the appointment matching the configured IVR
// account number.
func (s *Session) NavigateToReschedule(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx)

	var currentURL string
	if err := s.run(5*time.Second, chromedp.Location(&currentURL)); err != nil {
		return fmt.Errorf("failed to read current url: %w", err)
	}
	if strings.Contains(strings.ToLower(currentURL), "reschedule") {
		logger.Debug("already on reschedule page")
		return nil
	}

	if err := s.openAppointmentCard(logger); err != nil {
		s.SaveDebugInfo("navigation_error")
		return err
	}

	if err := s.openRescheduleAccordion(logger); err != nil {
		s.SaveDebugInfo("navigation_error")
		return err
	}

	if err := s.run(10*time.Second,
		chromedp.WaitVisible(FacilitySelectSelector, chromedp.ByQuery),
	); err != nil {
		s.SaveDebugInfo("navigation_error")
		return fmt.Errorf("reschedule page did not load: %w", err)
	}
	logger.Info("reached reschedule page")
	return nil
}

func (s *Session) openAppointmentCard(logger *slog.Logger) error {
	marker := fmt.Sprintf("IVR Account Number: %s", s.account.Appointment.IVRNumber)

	var ok bool
	err := s.run(15*time.Second,
		chromedp.WaitVisible(ApplicationCardSelector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(clickCardContinueJS, ApplicationCardSelector, marker, CardContinueSelector), &ok),
	)
	if err != nil {
		return fmt.Errorf("failed to open appointment card: %w", err)
	}
	if !ok {
		s.SaveDebugInfo("no_matching_card")
		return fmt.Errorf("no appointment card found for IVR account number %s", s.account.Appointment.IVRNumber)
	}
	logger.Debug("clicked continue on matching appointment card")
	return nil
}

func (s *Session) openRescheduleAccordion(logger *slog.Logger) error {
	var ok bool
	err := s.run(15*time.Second,
		chromedp.WaitVisible(AccordionSelector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(openAccordionJS, AccordionTitleSelector, AccordionLinkSelector), &ok),
	)
	if err != nil {
		return fmt.Errorf("failed to open reschedule accordion: %w", err)
	}
	if !ok {
		return errors.New("reschedule appointment option not found")
	}
	logger.Debug("followed reschedule appointment link")
	return nil
}

// CheckSlots walks the preferred facilities and returns the first open
// slot within the configured date range, or nil if there is none.
func (s *Session) CheckSlots(ctx context.Context) (*Slot, error) {
	logger := log.LoggerFromContext(ctx)

	var selectHTML string
	if err := s.run(10*time.Second,
		chromedp.WaitVisible(FacilitySelectSelector, chromedp.ByQuery),
		chromedp.OuterHTML(FacilitySelectSelector, &selectHTML, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("facility select not available: %w", err)
	}

	facilities, err := ParseFacilities(selectHTML)
	if err != nil {
		return nil, err
	}
	preferred := FilterPreferred(facilities, s.account.Appointment.PreferredCities)
	if len(preferred) == 0 {
		return nil, fmt.Errorf("none of the preferred cities %v offered by the portal", s.account.Appointment.PreferredCities)
	}

	for _, f := range preferred {
		date, err := s.availableDate(f)
		if err != nil {
			logger.Debug("no readable date for facility",
				slog.String("city", f.City), slog.String("err", err.Error()))
			continue
		}
		if date == "" {
			continue
		}
		inRange, err := dates.InRange(date, s.account.Appointment.DateRange.StartDate, s.account.Appointment.DateRange.EndDate)
		if err != nil {
			logger.Warn("portal returned unparseable date",
				slog.String("city", f.City), slog.String("date", date))
			continue
		}
		if inRange {
			logger.Info("found open slot", slog.String("city", f.City), slog.String("date", date))
			return &Slot{City: f.City, Date: date}, nil
		}
		logger.Debug("slot outside date range", slog.String("city", f.City), slog.String("date", date))
	}
	logger.Info("no suitable slot found")
	return nil, nil
}

// availableDate selects a facility and reads the earliest date the
// portal offers for it. An empty string means the calendar is disabled.
func (s *Session) availableDate(f Facility) (string, error) {
	var selected bool
	var class, date string
	var hasPicker bool
	err := s.run(15*time.Second,
		chromedp.Evaluate(fmt.Sprintf(selectFacilityJS, FacilitySelectSelector, f.Value), &selected),
		chromedp.Sleep(2*time.Second), // wait for the change handler to load the calendar
		chromedp.AttributeValue(DatePickerSelector, "class", &class, &hasPicker, chromedp.ByQuery, chromedp.AtLeast(0)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !hasPicker || strings.Contains(class, "disabled") {
				return nil
			}
			return chromedp.Value(DatePickerSelector, &date, chromedp.ByQuery).Do(ctx)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to read calendar for %s: %w", f.City, err)
	}
	if !selected {
		return "", fmt.Errorf("facility %s could not be selected", f.City)
	}
	return date, nil
}

// Book books the currently displayed slot by picking the first offered
// time. The caller must have run CheckSlots right before so the facility
// calendar still shows the slot.
func (s *Session) Book(ctx context.Context, slot Slot) error {
	logger := log.LoggerFromContext(ctx)
	logger.Info("booking slot", slog.String("city", slot.City), slog.String("date", slot.Date))

	var picked bool
	err := s.run(15*time.Second,
		chromedp.WaitVisible(TimeSelectSelector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(pickFirstTimeJS, TimeSelectSelector), &picked),
	)
	if err != nil {
		return fmt.Errorf("time select not available: %w", err)
	}
	if !picked {
		return errors.New("no bookable time offered")
	}

	err = s.run(15*time.Second,
		chromedp.Click(SubmitButtonSelector, chromedp.ByQuery),
		chromedp.WaitVisible(ConfirmationSelector, chromedp.ByQuery),
	)
	if err != nil {
		s.SaveDebugInfo("booking_error")
		return fmt.Errorf("booking was not confirmed: %w", err)
	}
	logger.Info("booking confirmed", slog.String("city", slot.City), slog.String("date", slot.Date))
	return nil
}

// Refresh reloads the current page.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.run(30*time.Second,
		chromedp.Reload(),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return fmt.Errorf("failed to refresh page: %w", err)
	}
	return nil
}
