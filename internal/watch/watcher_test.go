package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyslot/easyslot/internal/config"
	"github.com/easyslot/easyslot/internal/metrics"
	"github.com/easyslot/easyslot/internal/portal"
	"github.com/easyslot/easyslot/internal/state"
)

type checkResult struct {
	slot *portal.Slot
	err  error
}

// fakePortal replays a scripted sequence of check results.
type fakePortal struct {
	mu       sync.Mutex
	loginErr error
	navErr   error
	bookErr  error
	script   []checkResult

	checkCalls int
	bookCalls  int
	closed     bool
}

func (f *fakePortal) Login(context.Context) error                { return f.loginErr }
func (f *fakePortal) NavigateToReschedule(context.Context) error { return f.navErr }
func (f *fakePortal) Refresh(context.Context) error              { return nil }

func (f *fakePortal) CheckSlots(context.Context) (*portal.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if len(f.script) == 0 {
		return nil, nil
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r.slot, r.err
}

func (f *fakePortal) Book(context.Context, portal.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls++
	return f.bookErr
}

func (f *fakePortal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recordingNotifier) Notify(_ context.Context, _, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recordingNotifier) containing(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, b := range r.bodies {
		if strings.Contains(b, substr) {
			count++
		}
	}
	return count
}

func testAccount(autoBook bool) config.Account {
	return config.Account{
		Name: "tester",
		Credentials: config.Credentials{
			Email:    "tester@example.com",
			Password: "pw",
		},
		Appointment: config.Appointment{
			IVRNumber:       "12345",
			PreferredCities: []string{"Toronto", "Vancouver"},
			DateRange:       config.DateRange{StartDate: "2025-06-01", EndDate: "2025-09-30"},
			AutoBook:        autoBook,
		},
	}
}

func newTestWatcher(t *testing.T, session Portal, autoBook bool) (*Watcher, *recordingNotifier, *clockwork.FakeClock, *state.Manager) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	states, err := state.NewManager(t.TempDir(), clock)
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	w := New(Options{
		Account: testAccount(autoBook),
		Monitoring: config.Monitoring{
			CheckInterval:    time.Minute,
			RetryInterval:    2 * time.Minute,
			MaxLoginAttempts: 3,
		},
		Session:  session,
		Notifier: notifier,
		States:   states,
		Metrics:  metrics.New(),
		Clock:    clock,
	})
	return w, notifier, clock, states
}

func runAsync(ctx context.Context, w *Watcher) chan error {
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not finish in time")
		return nil
	}
}

func TestRun_LoginFailure(t *testing.T) {
	session := &fakePortal{loginErr: errors.New("bad credentials")}
	w, notifier, _, states := newTestWatcher(t, session, false)

	err := waitErr(t, runAsync(context.Background(), w))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
	assert.True(t, session.closed)
	assert.Equal(t, 1, notifier.containing("Error occurred"))
	assert.Equal(t, state.StatusStopped, states.Get("tester@example.com").Status)
}

func TestRun_AutoBookSuccess(t *testing.T) {
	slot := &portal.Slot{City: "Toronto", Date: "2025-07-01"}
	session := &fakePortal{script: []checkResult{{slot: slot}}}
	w, notifier, _, _ := newTestWatcher(t, session, true)

	err := waitErr(t, runAsync(context.Background(), w))
	require.NoError(t, err)

	assert.Equal(t, 1, session.checkCalls)
	assert.Equal(t, 1, session.bookCalls)
	assert.Equal(t, 1, notifier.containing("Started monitoring"))
	assert.Equal(t, 1, notifier.containing("Successfully booked"))
	assert.True(t, session.closed)

	stats := w.Stats()
	assert.True(t, stats.Booked)
	assert.Equal(t, 1, stats.SlotsFound)
}

func TestRun_NotifyOnly_SuppressesDuplicates(t *testing.T) {
	slot := &portal.Slot{City: "Vancouver", Date: "2025-08-15"}
	session := &fakePortal{script: []checkResult{{slot: slot}, {slot: slot}}}
	w, notifier, clock, _ := newTestWatcher(t, session, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, w)

	// first check found the slot, watcher sleeps before the second
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	// second check found the same slot again
	clock.BlockUntil(1)
	cancel()

	require.NoError(t, waitErr(t, done))
	assert.Equal(t, 2, session.checkCalls)
	assert.Equal(t, 0, session.bookCalls)
	assert.Equal(t, 1, notifier.containing("Found available appointment"))
}

func TestRun_BookingFailureKeepsWatching(t *testing.T) {
	slot := &portal.Slot{City: "Toronto", Date: "2025-07-01"}
	session := &fakePortal{
		script:  []checkResult{{slot: slot}},
		bookErr: errors.New("slot taken"),
	}
	w, notifier, clock, _ := newTestWatcher(t, session, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, w)

	// booking failed, loop continues into its sleep
	clock.BlockUntil(1)
	cancel()

	require.NoError(t, waitErr(t, done))
	assert.Equal(t, 1, session.bookCalls)
	assert.Equal(t, 1, notifier.containing("Error occurred"))
	assert.False(t, w.Stats().Booked)
}

func TestRun_GivesUpAfterConsecutiveCheckErrors(t *testing.T) {
	boom := errors.New("portal exploded")
	session := &fakePortal{script: []checkResult{{err: boom}, {err: boom}, {err: boom}}}
	w, notifier, clock, states := newTestWatcher(t, session, false)

	done := runAsync(context.Background(), w)

	// two retries sleep on the retry interval, the third error is fatal
	for range 2 {
		clock.BlockUntil(1)
		clock.Advance(2 * time.Minute)
	}

	err := waitErr(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 consecutive failed checks")
	assert.Equal(t, 3, session.checkCalls)
	assert.Equal(t, 3, notifier.containing("Error occurred"))
	assert.Equal(t, state.StatusStopped, states.Get("tester@example.com").Status)
}

func TestRun_ErrorCounterResetsAfterSuccess(t *testing.T) {
	boom := errors.New("flaky portal")
	session := &fakePortal{script: []checkResult{
		{err: boom}, {slot: nil}, {err: boom}, {err: boom},
	}}
	w, _, clock, _ := newTestWatcher(t, session, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, w)

	// error, success, error, error: never three in a row
	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)
	clock.BlockUntil(1)
	cancel()

	require.NoError(t, waitErr(t, done))
	assert.Equal(t, 4, session.checkCalls)
}

func TestRun_StateTransitions(t *testing.T) {
	slot := &portal.Slot{City: "Toronto", Date: "2025-07-01"}
	session := &fakePortal{script: []checkResult{{slot: slot}}}
	w, _, _, states := newTestWatcher(t, session, true)

	require.NoError(t, waitErr(t, runAsync(context.Background(), w)))

	r := states.Get("tester@example.com")
	// final state is stopped, but the slot find is preserved
	assert.Equal(t, state.StatusStopped, r.Status)
	assert.False(t, r.LastSlotFound.IsZero())
}
