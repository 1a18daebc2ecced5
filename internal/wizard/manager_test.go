package wizard

import (
	"testing"
	"time"

	"pasarmalam/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OwnerCheck(t *testing.T) {
	m := NewManager(&Deps{})
	w := m.Open(testActor)

	got, err := m.Get(w.ID(), "u-1")
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = m.Get(w.ID(), "intruder")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = m.Get("missing", "u-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.Close(w.ID(), "intruder"), ErrForbidden)
	require.NoError(t, m.Close(w.ID(), "u-1"))
	assert.True(t, w.Closed())
	assert.Equal(t, 0, m.Len())
}

func TestManager_OpenExisting(t *testing.T) {
	m := NewManager(&Deps{})
	w, err := m.OpenExisting(testActor, model.Listing{ID: "L-1", SellerID: "u-1", Type: model.ListingTypeSell, Title: "Catan"})
	require.NoError(t, err)
	assert.Equal(t, ModeEditExisting, w.Snapshot().Mode)
	assert.Equal(t, 1, m.Len())

	_, err = m.OpenExisting(testActor, model.Listing{ID: "L-2", SellerID: "u-2"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestManager_Sweep(t *testing.T) {
	m := NewManager(&Deps{})
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	idle := m.Open(testActor)
	now = now.Add(20 * time.Minute)
	active := m.Open(testActor)
	done := m.Open(testActor)
	done.Close()

	removed := m.Sweep(15 * time.Minute)
	assert.Equal(t, 2, removed)
	assert.True(t, idle.Closed())

	_, err := m.Get(active.ID(), "u-1")
	assert.NoError(t, err)
	_, err = m.Get(idle.ID(), "u-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
