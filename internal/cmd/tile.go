package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hoppxi/nightdisplay/internal/manager"
	"github.com/ncruces/zenity"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

// parseReply splits a daemon reply into its payload or an error.
func parseReply(reply string) (string, error) {
	switch {
	case strings.HasPrefix(reply, "OK: "):
		return strings.TrimPrefix(reply, "OK: "), nil
	case strings.HasPrefix(reply, "ERR: "):
		return "", errors.New(strings.TrimPrefix(reply, "ERR: "))
	default:
		return "", fmt.Errorf("unexpected reply %q", reply)
	}
}

func request(command string, args ...string) (string, error) {
	line := strings.Join(append([]string{command}, args...), " ")
	reply, err := manager.SendIPCCommand(line)
	if err != nil {
		return "", err
	}
	return parseReply(reply)
}

// simple builds a command that forwards its arguments and prints the reply.
func simple(use, short, command string, nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		Run: func(cmd *cobra.Command, args []string) {
			out, err := request(command, args...)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println(out)
		},
	}
}

var (
	clickCmd     = simple("click", "Toggle night display and print the tile state", "CLICK", 0)
	stateCmd     = simple("state", "Print the tile state as JSON", "STATE", 0)
	availableCmd = simple("available", "Report whether night display is supported", "AVAILABLE", 0)
	listenCmd    = simple("listen on|off", "Start or stop following night display changes", "LISTEN", 1)
	userCmd      = simple("user <id>", "Bind the tile to another user", "USER", 1)
)

var openTarget bool

var longpressCmd = &cobra.Command{
	Use:   "longpress",
	Short: "Print the settings target, optionally opening it",
	Run: func(cmd *cobra.Command, args []string) {
		target, err := request("LONGPRESS")
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if !openTarget {
			fmt.Println(target)
			return
		}
		if err := open.Run(target); err != nil {
			fmt.Printf("Failed to open %s: %v\n", target, err)
			os.Exit(1)
		}
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Ask whether toggling night display should also dim the screen",
	Run: func(cmd *cobra.Command, args []string) {
		err := zenity.Question(
			"Lower screen brightness while night display is on?",
			zenity.Title("Night Display"),
			zenity.OKLabel("Dim"),
			zenity.CancelLabel("Don't dim"),
		)

		value := "on"
		switch {
		case err == nil:
		case errors.Is(err, zenity.ErrCanceled):
			value = "off"
		default:
			fmt.Println("Error:", err)
			os.Exit(1)
		}

		if _, err := request("PREF", value); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Brightness on toggle:", value)
	},
}

func init() {
	longpressCmd.Flags().BoolVar(&openTarget, "open", false, "open the target with the desktop handler")
}
