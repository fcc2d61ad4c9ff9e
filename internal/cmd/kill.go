package cmd

import (
	"fmt"
	"strings"

	"github.com/hoppxi/nightdisplay/internal/manager"
	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the daemon.",
	Run: func(cmd *cobra.Command, args []string) {
		response, err := manager.SendIPCCommand("STOP")
		if err != nil {
			fmt.Printf("Error: %v (Is the daemon running?)\n", err)
			return
		}

		fmt.Printf("Server response: %s\n", response)

		if strings.HasPrefix(response, "OK") {
			fmt.Println("nightdisplay daemon successfully shut down.")
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		response, err := manager.SendIPCCommand("STATUS")
		if err != nil {
			fmt.Println("not running")
			return
		}
		fmt.Println(strings.TrimPrefix(response, "OK: "))
	},
}
