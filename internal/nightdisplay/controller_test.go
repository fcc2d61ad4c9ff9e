package nightdisplay_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoppxi/nightdisplay/internal/nightdisplay"
	"github.com/hoppxi/nightdisplay/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []bool
	ch     chan bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan bool, 8)}
}

func (r *recorder) OnActivated(activated bool) {
	r.mu.Lock()
	r.events = append(r.events, activated)
	r.mu.Unlock()
	r.ch <- activated
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeApplier struct {
	kelvins []uint16
	err     error
}

func (f *fakeApplier) SetTemperature(k uint16) error {
	f.kelvins = append(f.kelvins, k)
	return f.err
}

type probe bool

func (p probe) Available() bool { return bool(p) }

func TestSetActivatedPersistsPerUser(t *testing.T) {
	store := settings.NewMemory()
	c := nightdisplay.NewController(store, 10)

	assert.False(t, c.IsActivated())
	require.NoError(t, c.SetActivated(true))
	assert.True(t, c.IsActivated())

	other := nightdisplay.NewController(store, 11)
	assert.False(t, other.IsActivated())
	assert.Equal(t, 10, c.User())
}

func TestSetActivatedAppliesTemperature(t *testing.T) {
	applier := &fakeApplier{}
	c := nightdisplay.NewController(settings.NewMemory(), 0,
		nightdisplay.WithApplier(applier),
		nightdisplay.WithTemperatures(3500, 6500))

	require.NoError(t, c.SetActivated(true))
	require.NoError(t, c.SetActivated(false))
	c.Apply()

	assert.Equal(t, []uint16{3500, 6500, 6500}, applier.kelvins)
}

func TestSetTemperaturesReapplies(t *testing.T) {
	store := settings.NewMemory()
	applier := &fakeApplier{}
	c := nightdisplay.NewController(store, 0, nightdisplay.WithApplier(applier))
	require.NoError(t, c.SetActivated(true))

	c.SetTemperatures(3000, 0)
	assert.Equal(t, uint16(3000), applier.kelvins[len(applier.kelvins)-1])

	require.NoError(t, c.SetActivated(false))
	assert.Equal(t, uint16(nightdisplay.DefaultNeutralKelvin), applier.kelvins[len(applier.kelvins)-1])
}

func TestApplierFailureDoesNotFailToggle(t *testing.T) {
	applier := &fakeApplier{err: errors.New("relay gone")}
	c := nightdisplay.NewController(settings.NewMemory(), 0, nightdisplay.WithApplier(applier))

	require.NoError(t, c.SetActivated(true))
	assert.True(t, c.IsActivated())
}

func TestListenerNotifiedOnChange(t *testing.T) {
	c := nightdisplay.NewController(settings.NewMemory(), 0)
	r := newRecorder()
	c.SetListener(r)

	require.NoError(t, c.SetActivated(true))
	// Same state again is not a change.
	require.NoError(t, c.SetActivated(true))
	require.NoError(t, c.SetActivated(false))

	assert.Equal(t, []bool{true, false}, r.events)
}

func TestDetachedListenerNotNotified(t *testing.T) {
	c := nightdisplay.NewController(settings.NewMemory(), 0)
	r := newRecorder()
	c.SetListener(r)
	c.SetListener(nil)

	require.NoError(t, c.SetActivated(true))
	assert.Zero(t, r.count())
}

func TestExternalChangeIsDispatched(t *testing.T) {
	store := settings.NewMemory()
	posted := make(chan func(), 8)
	c := nightdisplay.NewController(store, 4,
		nightdisplay.WithDispatcher(func(f func()) { posted <- f }))

	r := newRecorder()
	c.SetListener(r)
	defer c.SetListener(nil)

	// Another process flips the setting.
	require.NoError(t, store.PutInt(settings.KeyNightDisplayActivated, 1, 4))

	select {
	case f := <-posted:
		assert.Zero(t, r.count(), "callback must wait for the dispatcher")
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dispatched callback")
	}

	select {
	case got := <-r.ch:
		assert.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("listener not called")
	}
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, nightdisplay.IsAvailable(probe(true)))
	assert.False(t, nightdisplay.IsAvailable(probe(false)))
	assert.False(t, nightdisplay.IsAvailable(nil))
}
