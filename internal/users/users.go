// Package users keeps the registry of portal accounts managed through
// the http api.
package users

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already exists")
)

type NotificationSettings struct {
	EmailEnabled bool   `json:"emailEnabled"`
	EmailAddress string `json:"emailAddress"`
}

type BrowserSettings struct {
	BrowserType string `json:"browserType"`
	Headless    bool   `json:"headless"`
}

// User is one managed portal account.
type User struct {
	Email        string               `json:"email"`
	Password     string               `json:"password,omitempty"`
	Name         string               `json:"name"`
	Notification NotificationSettings `json:"notificationSettings"`
	Browser      BrowserSettings      `json:"browserSettings"`
}

// Store is an in-memory user registry safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewStore() *Store {
	return &Store{users: map[string]User{}}
}

// All returns all users ordered by email.
func (s *Store) All() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (s *Store) Get(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) Add(u User) error {
	if u.Email == "" {
		return errors.New("user email must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Email]; ok {
		return ErrExists
	}
	s.users[u.Email] = u
	return nil
}

// Update replaces the user stored under email. The email itself cannot
// be changed.
func (s *Store) Update(email string, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[email]; !ok {
		return ErrNotFound
	}
	u.Email = email
	s.users[email] = u
	return nil
}

func (s *Store) Delete(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[email]; !ok {
		return ErrNotFound
	}
	delete(s.users, email)
	return nil
}
