package cmd

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hoppxi/nightdisplay/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the default config and the EWW tile widget",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)
		dir := filepath.Dir(configPath)

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Warning: config already exists at %s\n", configPath)
			if !confirm(reader, "Continuing will overwrite it. Proceed?") {
				return
			}
		}

		if err := extractEmbed(dir); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := writeConfig(configPath, map[string]string{"user": strconv.Itoa(os.Getuid())}); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Printf("Config written to %s\n", configPath)
		fmt.Printf("Include %s from your eww.yuck to show the tile.\n", filepath.Join(dir, "tile.yuck"))
	},
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Interactively generate nightdisplay.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		if _, err := os.Stat(configPath); err == nil {
			if !confirm(reader, "nightdisplay.yaml already exists. Overwrite with new settings?") {
				return
			}
		}

		values := map[string]string{
			"user":                      prompt(reader, "User id", strconv.Itoa(os.Getuid())),
			"settings.backend":          prompt(reader, "Settings backend (file, redis, memory)", "file"),
			"night_display.temperature": prompt(reader, "Night temperature in kelvin", "4000"),
			"tile.label":                prompt(reader, "Tile label", "Night Display"),
			"metrics.listen":            prompt(reader, "Metrics address (empty to disable)", ""),
		}
		if values["settings.backend"] == "redis" {
			values["settings.redis.addr"] = prompt(reader, "Redis address", "127.0.0.1:6379")
		}

		if err := writeConfig(configPath, values); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Config file updated.")
	},
}

// writeConfig writes the embedded default config to path with the dotted
// keys in values replaced. Comments in the default are kept.
func writeConfig(path string, values map[string]string) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(config.DefaultConfig(), &doc); err != nil {
		return fmt.Errorf("failed to parse default config: %w", err)
	}
	for key, value := range values {
		if err := setValue(&doc, strings.Split(key, "."), value); err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func setValue(doc *yaml.Node, path []string, value string) error {
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	for i, key := range path {
		if node.Kind != yaml.MappingNode {
			return fmt.Errorf("config key %q is not a mapping", strings.Join(path[:i], "."))
		}
		var next *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == key {
				next = node.Content[j+1]
				break
			}
		}
		if next == nil {
			return fmt.Errorf("unknown config key %q", strings.Join(path[:i+1], "."))
		}
		node = next
	}

	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("config key %q is not a value", strings.Join(path, "."))
	}
	node.Value = value
	node.Tag = ""
	node.Style = 0
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		node.Tag = "!!str"
	}
	return nil
}

func prompt(r *bufio.Reader, label, defaultValue string) string {
	fmt.Printf("%s [%s]: ", label, defaultValue)
	input, _ := r.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func confirm(r *bufio.Reader, message string) bool {
	fmt.Printf("%s (y/N): ", message)
	input, _ := r.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func extractEmbed(targetDir string) error {
	embeds := config.ConfigFS()
	return fs.WalkDir(embeds, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == "." {
			return err
		}

		targetPath := filepath.Join(targetDir, path)
		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o755)
		}

		content, err := embeds.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return err
		}
		return os.WriteFile(targetPath, content, 0o644)
	})
}
