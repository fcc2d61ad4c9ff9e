// Package render pushes tile state into EWW variables.
package render

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

// DefaultVar is the EWW variable holding the tile state.
const DefaultVar = "NIGHT_DISPLAY_TILE"

type Eww struct {
	Bin string
	Var string

	// run executes the command; replaced in tests.
	run func(name string, args ...string) error
}

func NewEww(variable string) *Eww {
	if variable == "" {
		variable = DefaultVar
	}
	return &Eww{Bin: "eww", Var: variable, run: runCommand}
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// Render marshals v to JSON and runs `eww update VAR=<json>`.
func (e *Eww) Render(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("render: marshal: %w", err)
	}
	if err := e.run(e.Bin, "update", e.Var+"="+string(data)); err != nil {
		return fmt.Errorf("render: eww update: %w", err)
	}
	return nil
}
