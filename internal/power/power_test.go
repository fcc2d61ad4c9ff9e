package power

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	method string
	args   []interface{}
	err    error
}

func (f *fakeSession) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	return &dbus.Call{Err: f.err}
}

type fakeRelay struct {
	value float64
	err   error
}

func (f *fakeRelay) SetBrightness(b float64) error {
	f.value = b
	return f.err
}

func writeBacklight(t *testing.T, maxVal, cur string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "backlight", "intel_backlight")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(maxVal+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte(cur+"\n"), 0o644))
	return root
}

func TestFindBacklight(t *testing.T) {
	root := writeBacklight(t, "1000", "400")

	bl, err := FindBacklight(root)
	require.NoError(t, err)
	assert.Equal(t, "intel_backlight", bl.Name)

	_, err = FindBacklight(t.TempDir())
	assert.Error(t, err)
}

func TestBacklightScale(t *testing.T) {
	bl, err := FindBacklight(writeBacklight(t, "1000", "0"))
	require.NoError(t, err)

	cases := map[int]uint32{
		0:   0,
		1:   3,
		255: 1000,
		300: 1000,
		-5:  0,
	}
	for level, want := range cases {
		got, err := bl.Scale(level)
		require.NoError(t, err)
		assert.Equal(t, want, got, "level %d", level)
	}

	small, err := FindBacklight(writeBacklight(t, "10", "0"))
	require.NoError(t, err)
	got, err := small.Scale(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got)
}

func TestBacklightInvalidMax(t *testing.T) {
	bl, err := FindBacklight(writeBacklight(t, "0", "0"))
	require.NoError(t, err)

	_, err = bl.Scale(10)
	assert.Error(t, err)
}

func TestSetTemporaryBrightnessOverride(t *testing.T) {
	bl, err := FindBacklight(writeBacklight(t, "255", "100"))
	require.NoError(t, err)

	session := &fakeSession{}
	svc := &Service{session: session, backlight: bl}

	require.NoError(t, svc.SetTemporaryBrightnessOverride(1))
	assert.Equal(t, setBrightness, session.method)
	assert.Equal(t, []interface{}{"backlight", "intel_backlight", uint32(1)}, session.args)

	session.err = errors.New("access denied")
	err = svc.SetTemporaryBrightnessOverride(1)
	assert.ErrorIs(t, err, ErrRemote)
}

func TestSetTemporaryBrightnessOverrideNoDevice(t *testing.T) {
	svc := &Service{session: &fakeSession{}}
	assert.ErrorIs(t, svc.SetTemporaryBrightnessOverride(1), ErrRemote)
}

func TestSetTemporaryAutoBrightnessOverride(t *testing.T) {
	relay := &fakeRelay{}
	svc := &Service{relay: relay}

	require.NoError(t, svc.SetTemporaryAutoBrightnessOverride(-0.3))
	assert.InDelta(t, 0.7, relay.value, 1e-9)

	relay.err = errors.New("no such object")
	assert.ErrorIs(t, svc.SetTemporaryAutoBrightnessOverride(-0.3), ErrRemote)

	assert.ErrorIs(t, (&Service{}).SetTemporaryAutoBrightnessOverride(0), ErrRemote)
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, Multiplier(0.1))
	assert.Equal(t, 1.0, Multiplier(0))
	assert.InDelta(t, 0.5, Multiplier(-0.5), 1e-9)
	assert.Equal(t, minMultiplier, Multiplier(-1))
}
