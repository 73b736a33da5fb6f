// Package app wires the command-line interface to the session-timer
// core.
package app

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/Andresssrr24/Crono-Learn/config"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// Get retrieves the Crono-Learn app instance.
func Get() *cli.App {
	cronoApp := &cli.App{
		Name: "cronolearn",
		Usage: `
		Crono-Learn runs countdown work sessions from the command line.
		Start a session, pause and resume it at will, and keep your
		progress safe across restarts.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              config.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "resume",
				Usage:  "Resume a paused session. Defaults to the most recently started one",
				Action: resumeAction,
			},
			{
				Name:      "stop",
				Usage:     "Terminally stop a session",
				ArgsUsage: "SESSION_ID",
				Action:    stopAction,
			},
			{
				Name:      "status",
				Usage:     "Print the status of a session",
				ArgsUsage: "SESSION_ID",
				Action:    statusAction,
			},
			{
				Name:   "list",
				Usage:  "List sessions, optionally filtered by status",
				Flags:  []cli.Flag{statusFilterFlag, jsonFlag},
				Action: listAction,
			},
			{
				Name:   "running",
				Usage:  "List sessions that are currently ticking",
				Flags:  []cli.Flag{jsonFlag},
				Action: runningAction,
			},
			{
				Name:      "extend",
				Usage:     "Add seconds to the work target of a session",
				ArgsUsage: "SESSION_ID SECONDS",
				Action:    extendAction,
			},
			{
				Name:   "stats",
				Usage:  "Print system-wide session statistics",
				Flags:  []cli.Flag{jsonFlag},
				Action: statsAction,
			},
			{
				Name:   "health",
				Usage:  "Report orchestrator bookkeeping health",
				Flags:  []cli.Flag{jsonFlag},
				Action: healthAction,
			},
			{
				Name:   "cleanup",
				Usage:  "Pause every ticking session for the owner",
				Action: cleanupAction,
			},
			{
				Name:      "check",
				Usage:     "Check timer/status consistency for a session",
				ArgsUsage: "SESSION_ID",
				Action:    checkAction,
			},
			{
				Name:      "repair",
				Usage:     "Repair timer/status drift for a session",
				ArgsUsage: "SESSION_ID",
				Action:    repairAction,
			},
		},
		Flags: []cli.Flag{
			ownerFlag,
			workFlag,
			restFlag,
			labelFlag,
			disableNotificationFlag,
			noColorFlag,
			verboseFlag,
		},
		Action: defaultAction,
		Before: beforeAction,
	}

	return cronoApp
}

func beforeAction(ctx *cli.Context) error {
	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}

	// Disable colour output if NO_COLOR is set
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		disableStyling()
	}

	if ctx.Bool("no-color") {
		disableStyling()
	}

	return nil
}
