package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/Andresssrr24/Crono-Learn/config"
	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
	"github.com/Andresssrr24/Crono-Learn/internal/logutil"
	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/internal/timeutil"
	"github.com/Andresssrr24/Crono-Learn/orchestrator"
	"github.com/Andresssrr24/Crono-Learn/store"
	"github.com/Andresssrr24/Crono-Learn/timer"
)

// env holds the orchestrator and its collaborators for one CLI
// invocation.
type env struct {
	cfg    *config.App
	db     *store.Client
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func newEnv(ctx *cli.Context) (*env, error) {
	cfg := config.Get(ctx)

	db, err := store.NewClient(cfg.PathToDB)
	if err != nil {
		return nil, err
	}

	logger := logutil.New(logutil.Writer(config.Dir()), cfg.Verbose)

	orch := orchestrator.New(db, timer.Opts{
		Tick:              cfg.TickInterval,
		ReportEvery:       cfg.ProgressInterval,
		MaxActiveSessions: cfg.MaxActiveSessions,
		Logger:            logger,
	}, logger)

	return &env{cfg: cfg, db: db, orch: orch, logger: logger}, nil
}

func (e *env) close() {
	e.orch.Shutdown()
	_ = e.db.Close()
}

// requireArg returns the command's positional argument at index i.
func requireArg(ctx *cli.Context, i int, name string) (string, error) {
	v := ctx.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("missing required argument: %s", name)
	}

	return v, nil
}

// notify sends a desktop notification once a session has completed.
func (e *env) notify(sess session.Summary) {
	if !e.cfg.Notify {
		return
	}

	msg := "Time for a break"
	if sess.Label != "" {
		msg = sess.Label + ": time for a break"
	}

	err := beeep.Notify("Work session completed", msg, "")
	if err != nil {
		e.logger.Error("unable to display notification",
			slog.Any("error", err),
		)
	}
}

// watchSession blocks while the session ticks, printing the remaining
// time each second. Ctrl-C pauses the session and persists its progress
// before exiting.
func (e *env) watchSession(owner, id string) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(c)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c:
			sess, err := e.orch.PauseSession(owner, id)
			if err != nil {
				return err
			}

			fmt.Println()
			pterm.Info.Printfln(
				"Session paused at %s. Run %s to continue.",
				timeutil.FormatSeconds(sess.WorkedSeconds),
				pterm.Green("cronolearn resume"),
			)

			return nil
		case <-ticker.C:
			summary, err := e.orch.GetSessionStatus(owner, id)
			if err != nil {
				return err
			}

			switch summary.Status {
			case session.Running:
				fmt.Fprintf(
					os.Stdout,
					"\r\033[K🕒%s",
					pterm.Yellow(
						timeutil.FormatSeconds(summary.RemainingSeconds),
					),
				)
			case session.Completed:
				fmt.Println()
				pterm.Success.Printfln(
					"Session completed! Take a %s break.",
					timeutil.FormatSeconds(e.cfg.RestSeconds),
				)
				e.notify(summary)

				return nil
			case session.Scheduled, session.Paused, session.Stopped,
				session.Failed:
				fmt.Println()
				pterm.Warning.Printfln(
					"Session is no longer running (status: %s)",
					summary.Status,
				)

				return nil
			}
		}
	}
}

// defaultAction starts a new session and blocks until it completes or is
// interrupted.
func defaultAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	sess, err := e.orch.StartSession(
		e.cfg.Owner,
		e.cfg.WorkSeconds,
		e.cfg.RestSeconds,
		ctx.String("label"),
	)
	if err != nil {
		return err
	}

	pterm.Info.Printfln(
		"Started session %s (%s of work)",
		pterm.Green(sess.ID),
		timeutil.FormatSeconds(sess.WorkSeconds),
	)

	return e.watchSession(e.cfg.Owner, sess.ID)
}

// resumeAction resumes a paused session and blocks like defaultAction.
// Without an argument it picks the most recently started paused session.
func resumeAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id := ctx.Args().First()

	if id == "" {
		paused, lerr := e.orch.ListSessions(e.cfg.Owner, session.Paused)
		if lerr != nil {
			return lerr
		}

		if len(paused) == 0 {
			return apperr.NotFoundf(
				"no paused session found: please start a new session",
			)
		}

		id = paused[len(paused)-1].ID
	}

	sess, err := e.orch.ResumeSession(e.cfg.Owner, id)
	if err != nil {
		return err
	}

	pterm.Info.Printfln(
		"Resumed session %s (%s remaining)",
		pterm.Green(sess.ID),
		timeutil.FormatSeconds(sess.Remaining()),
	)

	return e.watchSession(e.cfg.Owner, sess.ID)
}

// stopAction terminally stops a session.
func stopAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := requireArg(ctx, 0, "SESSION_ID")
	if err != nil {
		return err
	}

	sess, err := e.orch.StopSession(e.cfg.Owner, id)
	if err != nil {
		return err
	}

	pterm.Info.Printfln(
		"Stopped session %s after %s of work",
		sess.ID,
		timeutil.FormatSeconds(sess.WorkedSeconds),
	)

	return nil
}

// statusAction prints the status summary of one session.
func statusAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := requireArg(ctx, 0, "SESSION_ID")
	if err != nil {
		return err
	}

	summary, err := e.orch.GetSessionStatus(e.cfg.Owner, id)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	pterm.Println(string(b))

	return nil
}

// listAction prints the owner's sessions.
func listAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	var statuses []session.Status

	if v := ctx.String("status"); v != "" {
		st := session.Status(v)
		if !st.Valid() {
			return apperr.Validationf("unknown status %q", v)
		}

		statuses = append(statuses, st)
	}

	sessions, err := e.orch.ListSessions(e.cfg.Owner, statuses...)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, merr := json.Marshal(sessions)
		if merr != nil {
			return merr
		}

		pterm.Println(string(b))

		return nil
	}

	tableData := pterm.TableData{
		{"ID", "STATUS", "WORKED", "TARGET", "LABEL"},
	}

	for _, s := range sessions {
		tableData = append(tableData, []string{
			s.ID,
			string(s.Status),
			timeutil.FormatSeconds(s.WorkedSeconds),
			timeutil.FormatSeconds(s.WorkSeconds),
			s.Label,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// runningAction prints a summary for every ticking session.
func runningAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	summaries, err := e.orch.ListRunningSessions(e.cfg.Owner)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, merr := json.Marshal(summaries)
		if merr != nil {
			return merr
		}

		pterm.Println(string(b))

		return nil
	}

	if len(summaries) == 0 {
		pterm.Info.Println("No running sessions")

		return nil
	}

	tableData := pterm.TableData{
		{"ID", "WORKED", "REMAINING", "LABEL"},
	}

	for _, s := range summaries {
		tableData = append(tableData, []string{
			s.ID,
			timeutil.FormatSeconds(s.WorkedSeconds),
			timeutil.FormatSeconds(s.RemainingSeconds),
			s.Label,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// extendAction adds work time to a session.
func extendAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := requireArg(ctx, 0, "SESSION_ID")
	if err != nil {
		return err
	}

	secsArg, err := requireArg(ctx, 1, "SECONDS")
	if err != nil {
		return err
	}

	secs, err := strconv.Atoi(secsArg)
	if err != nil {
		return apperr.Validationf("seconds must be an integer, got %q", secsArg)
	}

	sess, err := e.orch.ExtendSession(e.cfg.Owner, id, secs)
	if err != nil {
		return err
	}

	pterm.Info.Printfln(
		"Extended session %s to %s of work",
		sess.ID,
		timeutil.FormatSeconds(sess.WorkSeconds),
	)

	return nil
}

// statsAction prints system-wide statistics.
func statsAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	stats, err := e.orch.SystemStats()
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, merr := json.Marshal(stats)
		if merr != nil {
			return merr
		}

		pterm.Println(string(b))

		return nil
	}

	tableData := pterm.TableData{
		{"STATUS", "SESSIONS"},
	}

	for _, st := range session.Statuses {
		tableData = append(tableData, []string{
			string(st),
			strconv.Itoa(stats.CountsByStatus[st]),
		})
	}

	err = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	if err != nil {
		return err
	}

	pterm.Info.Printfln(
		"%d owner(s), %d active session(s)",
		stats.TotalOwners, stats.TotalActiveSessions,
	)

	return nil
}

// healthAction reports orchestrator bookkeeping health.
func healthAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	health := e.orch.HealthCheck()

	if ctx.Bool("json") {
		b, merr := json.Marshal(health)
		if merr != nil {
			return merr
		}

		pterm.Println(string(b))

		return nil
	}

	if health.Status == orchestrator.Healthy {
		pterm.Success.Printfln("Health: %s", health.Status)
	} else {
		pterm.Warning.Printfln("Health: %s", health.Status)
	}

	for _, issue := range health.Issues {
		pterm.Warning.Println(issue)
	}

	return nil
}

// cleanupAction pauses every ticking session for the owner.
func cleanupAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	e.orch.CleanupOwner(e.cfg.Owner)

	pterm.Info.Printfln("Paused all running sessions for %s", e.cfg.Owner)

	return nil
}

// checkAction reports timer/status consistency for one session.
func checkAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := requireArg(ctx, 0, "SESSION_ID")
	if err != nil {
		return err
	}

	report, err := e.orch.CheckConsistency(e.cfg.Owner, id)
	if err != nil {
		return err
	}

	if report.Consistent {
		pterm.Success.Println(report.Detail)
	} else {
		pterm.Warning.Println(report.Detail)
	}

	return nil
}

// repairAction repairs timer/status drift for one session.
func repairAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := requireArg(ctx, 0, "SESSION_ID")
	if err != nil {
		return err
	}

	repaired, err := e.orch.RepairConsistency(e.cfg.Owner, id)
	if err != nil {
		return err
	}

	if repaired {
		pterm.Success.Printfln("Repaired drift for session %s", id)
	} else {
		pterm.Info.Printfln("Session %s is already consistent", id)
	}

	return nil
}
