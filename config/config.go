package config

import (
	"embed"
)

//go:embed nightdisplay.yaml tile.yuck
var embeddedFiles embed.FS

func ConfigFS() embed.FS {
	return embeddedFiles
}

// DefaultConfig returns the stock nightdisplay.yaml.
func DefaultConfig() []byte {
	data, _ := embeddedFiles.ReadFile("nightdisplay.yaml")
	return data
}
