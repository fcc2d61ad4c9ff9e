package cmd

import (
	"fmt"
	"os"

	"github.com/hoppxi/nightdisplay/internal/manager"
	"github.com/spf13/cobra"
)

var Version = "0.1.0"

var configPath string

// Commands that work without a running daemon.
var offline = map[string]bool{
	"start":           true,
	"setup":           true,
	"generate-config": true,
	"status":          true,
	"help":            true,
}

var rootCmd = &cobra.Command{
	Use:     "nightdisplay",
	Version: Version,
	Short:   "Night display quick-settings tile for EWW",
	Long:    "nightdisplay runs the night display toggle tile and dims the screen while it is on",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if offline[cmd.Name()] {
			return
		}

		conn, err := manager.ConnectIPC()
		if err != nil {
			fmt.Println("Error:", err)
			fmt.Println("Hint: run `nightdisplay start` first")
			os.Exit(1)
		}
		conn.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", manager.DefaultConfigPath(), "config file")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(availableCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(longpressCmd)
	rootCmd.AddCommand(settingsCmd)
}
