package app

import "github.com/urfave/cli/v2"

var (
	ownerFlag = &cli.StringFlag{
		Name:    "owner",
		Aliases: []string{"o"},
		Usage:   "Owner of the session. Defaults to the OS user",
	}

	workFlag = &cli.UintFlag{
		Name:    "work",
		Aliases: []string{"w"},
		Usage:   "Work duration in seconds (default: 1500)",
	}

	restFlag = &cli.UintFlag{
		Name:    "rest",
		Aliases: []string{"r"},
		Usage:   "Rest duration in seconds (default: 300)",
	}

	labelFlag = &cli.StringFlag{
		Name:    "label",
		Aliases: []string{"l"},
		Usage:   "Describe the session in a few words",
	}

	statusFilterFlag = &cli.StringFlag{
		Name:  "status",
		Usage: "Filter sessions by status (scheduled, running, paused, stopped, completed, failed)",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Output as JSON",
	}

	disableNotificationFlag = &cli.BoolFlag{
		Name:    "disable-notification",
		Aliases: []string{"d"},
		Usage:   "Disable the system notification that appears after a session is completed",
	}

	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable debug logging",
	}
)
