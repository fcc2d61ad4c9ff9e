package power

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot holds the kernel's device classes.
const DefaultSysfsRoot = "/sys/class"

// Backlight is one device under <root>/backlight.
type Backlight struct {
	Root string
	Name string
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// FindBacklight picks the first backlight device below root.
func FindBacklight(root string) (*Backlight, error) {
	paths, err := filepath.Glob(filepath.Join(root, "backlight", "*"))
	if err != nil || len(paths) == 0 {
		return nil, errors.New("no backlight devices found")
	}
	return &Backlight{Root: root, Name: filepath.Base(paths[0])}, nil
}

func (b *Backlight) dir() string {
	return filepath.Join(b.Root, "backlight", b.Name)
}

func (b *Backlight) Max() (int, error) {
	maxVal, err := readInt(filepath.Join(b.dir(), "max_brightness"))
	if err != nil {
		return 0, err
	}
	if maxVal <= 0 {
		return 0, errors.New("invalid max_brightness value")
	}
	return maxVal, nil
}

// Scale maps a 0..255 brightness level onto the device range. Non-zero
// levels never scale to zero so the panel stays lit.
func (b *Backlight) Scale(level int) (uint32, error) {
	maxVal, err := b.Max()
	if err != nil {
		return 0, err
	}

	level = min(max(level, 0), 255)
	v := level * maxVal / 255
	if level > 0 && v == 0 {
		v = 1
	}
	return uint32(v), nil
}
