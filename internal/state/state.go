// Package state persists the monitoring state of every watched account
// as a json file, so the status survives restarts and can be served over
// the http api.
package state

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
)

const stateFileSuffix = "_state.json"

// Watcher statuses as stored in Record.Status.
const (
	StatusInitializing = "initializing"
	StatusLoggedIn     = "logged_in"
	StatusLoginFailed  = "login_failed"
	StatusWatching     = "watching"
	StatusSlotFound    = "slot_found"
	StatusBooked       = "booked"
	StatusError        = "error"
	StatusStopped      = "stopped"
)

// Record is the persisted state of one watched account.
type Record struct {
	Email         string    `json:"email"`
	Status        string    `json:"status"`
	LastChecked   time.Time `json:"lastChecked"`
	DateRange     string    `json:"dateRange"`
	Location      string    `json:"location"`
	LastSlotFound time.Time `json:"lastSlotFound"`
	SlotAvailable bool      `json:"slotAvailable"`
	Notes         string    `json:"notes"`
}

// Manager keeps the records of all accounts in memory and mirrors every
// update to disk.
type Manager struct {
	dir   string
	clock clockwork.Clock

	mu      sync.Mutex
	records map[string]*Record
}

// NewManager creates the state directory if needed and returns a manager
// writing into it.
func NewManager(dir string, clock clockwork.Clock) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &Manager{
		dir:     dir,
		clock:   clock,
		records: map[string]*Record{},
	}, nil
}

// fileName derives a short, filesystem-safe name from the email.
func fileName(email string) string {
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])[:16] + stateFileSuffix
}

// getOrCreate returns the in-memory record for email, loading it from
// disk on first access. Callers must hold mu.
func (m *Manager) getOrCreate(email string) *Record {
	if r, ok := m.records[email]; ok {
		return r
	}
	r := &Record{Email: email, Status: StatusInitializing}
	path := filepath.Join(m.dir, fileName(email))
	if data, err := os.ReadFile(path); err == nil {
		if err := sonic.Unmarshal(data, r); err != nil {
			slog.Error(fmt.Sprintf("failed to load state file %s: %v", path, err))
			r = &Record{Email: email, Status: StatusInitializing}
		}
		r.Email = email
	}
	m.records[email] = r
	return r
}

// Update sets the full monitoring state of an account and persists it.
func (m *Manager) Update(email, status, dateRange, location string, slotAvailable bool, notes string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.getOrCreate(email)
	r.Status = status
	r.LastChecked = m.clock.Now()
	r.DateRange = dateRange
	r.Location = location
	r.SlotAvailable = slotAvailable
	if slotAvailable {
		r.LastSlotFound = m.clock.Now()
	}
	r.Notes = notes
	m.save(r)
}

// SetLoginState records the outcome of a login attempt.
func (m *Manager) SetLoginState(email string, loggedIn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.getOrCreate(email)
	if loggedIn {
		r.Status = StatusLoggedIn
		r.Notes = "successfully logged in"
	} else {
		r.Status = StatusLoginFailed
		r.Notes = "login failed"
	}
	r.LastChecked = m.clock.Now()
	m.save(r)
}

// Get returns a copy of the record for email.
func (m *Manager) Get(email string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.getOrCreate(email)
}

// All returns a copy of all known records.
func (m *Manager) All() map[string]Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Record, len(m.records))
	for email, r := range m.records {
		out[email] = *r
	}
	return out
}

// save writes the record to disk. Callers must hold mu.
func (m *Manager) save(r *Record) {
	data, err := sonic.MarshalIndent(r, "", "  ")
	if err != nil {
		slog.Error(fmt.Sprintf("failed to marshal state for %s: %v", r.Email, err))
		return
	}
	path := filepath.Join(m.dir, fileName(r.Email))
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error(fmt.Sprintf("failed to write state file %s: %v", path, err))
	}
}
