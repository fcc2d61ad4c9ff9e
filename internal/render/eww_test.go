package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRunsEwwUpdate(t *testing.T) {
	e := NewEww("")
	var gotName string
	var gotArgs []string
	e.run = func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}

	require.NoError(t, e.Render(map[string]any{"activated": true}))
	assert.Equal(t, "eww", gotName)
	assert.Equal(t, []string{"update", `NIGHT_DISPLAY_TILE={"activated":true}`}, gotArgs)
}

func TestRenderReportsFailure(t *testing.T) {
	e := NewEww("TILE")
	e.run = func(string, ...string) error { return errors.New("daemon not running") }

	assert.Error(t, e.Render(struct{}{}))
}

func TestRenderRejectsUnmarshalable(t *testing.T) {
	e := NewEww("TILE")
	e.run = func(string, ...string) error {
		t.Fatal("eww must not run")
		return nil
	}

	assert.Error(t, e.Render(make(chan int)))
}
