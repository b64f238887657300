package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CRUD(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add(User{Email: "b@example.com", Name: "B"}))
	require.NoError(t, s.Add(User{Email: "a@example.com", Name: "A"}))

	u, err := s.Get("a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a@example.com", all[0].Email) // sorted by email
	assert.Equal(t, "b@example.com", all[1].Email)

	require.NoError(t, s.Update("a@example.com", User{Email: "ignored", Name: "A2"}))
	u, err = s.Get("a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A2", u.Name)
	assert.Equal(t, "a@example.com", u.Email) // email is immutable

	require.NoError(t, s.Delete("a@example.com"))
	_, err = s.Get("a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Duplicates(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(User{Email: "a@example.com"}))
	assert.ErrorIs(t, s.Add(User{Email: "a@example.com"}), ErrExists)
}

func TestStore_EmptyEmail(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.Add(User{}))
}

func TestStore_UpdateMissing(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Update("missing@example.com", User{}), ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing@example.com"), ErrNotFound)
}
