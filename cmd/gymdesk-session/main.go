// Command gymdesk-session runs a workout routine in the terminal and
// publishes the athlete's live status to a GymDesk server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"github.com/meltforce/gymdesk/internal/client"
	"github.com/meltforce/gymdesk/internal/config"
	"github.com/meltforce/gymdesk/internal/logging"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/timer"
	"github.com/meltforce/gymdesk/internal/tracker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "GymDesk server URL (or GYMDESK_SERVER)")
	routineID := flag.String("routine", "", "routine id to run (lists your routines when empty)")
	heartbeat := flag.Duration("heartbeat", tracker.DefaultHeartbeat, "live status heartbeat interval")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	quiet := flag.Bool("quiet", false, "no beeps or desktop notifications")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("gymdesk-session", Version)
		return
	}

	_ = godotenv.Load()
	if *serverURL == "" {
		*serverURL = os.Getenv("GYMDESK_SERVER")
	}
	token := os.Getenv("GYMDESK_TOKEN")
	if *serverURL == "" || token == "" {
		fmt.Fprintf(os.Stderr, "Usage: GYMDESK_TOKEN=... gymdesk-session -server <URL> [-routine <id>]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log, closer, err := logging.New(config.LogConfig{Level: *logLevel})
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client.New(*serverURL, token), *routineID, *heartbeat, *quiet, os.Stdin, log); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, routineID string, heartbeat time.Duration, quiet bool, in io.Reader, log *slog.Logger) error {
	me, err := c.Me(ctx)
	if err != nil {
		return fmt.Errorf("checking token: %w", err)
	}
	if me.Role != models.RoleAthlete {
		return fmt.Errorf("signed in as %s; only athletes run sessions", me.Role)
	}

	if routineID == "" {
		return listRoutines(ctx, c)
	}
	routine, err := c.GetRoutine(ctx, routineID)
	if err != nil {
		return fmt.Errorf("loading routine: %w", err)
	}

	var cue timer.Cue
	notify := func(msg string) { pterm.Warning.Println(msg) }
	if !quiet {
		cue = timer.CueFunc(func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		})
		notify = func(msg string) {
			pterm.Warning.Println(msg)
			// Notify must not block the tracker.
			go func() {
				if err := beeep.Notify("GymDesk", msg, ""); err != nil {
					log.Debug("desktop notification failed", "error", err)
				}
			}()
		}
	}

	tr, err := tracker.New(
		tracker.Identity{AthleteID: me.UserID, TenantID: me.TenantID},
		*routine, c, c, tracker.NotifierFunc(notify), log,
		tracker.Options{Heartbeat: heartbeat, Cue: cue},
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Run(ctx)
	}()
	// Run deletes the live snapshot when ctx is cancelled.
	defer func() {
		cancel()
		<-done
	}()

	pterm.DefaultHeader.WithFullWidth().Println(routine.Name)
	pterm.Info.Println(helpText)
	showStep(tr)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			pterm.Info.Println("Session interrupted.")
			return nil
		case <-ticker.C:
			tickTimer(tr)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := execute(ctx, tr, parseCommand(line))
			if err != nil {
				pterm.Error.Println(err)
			}
			if quit || tr.Ended() {
				pterm.Success.Println("Session finished. Nice work!")
				return nil
			}
		}
	}
}

func listRoutines(ctx context.Context, c *client.Client) error {
	routines, err := c.ListRoutines(ctx, "")
	if err != nil {
		return err
	}
	if len(routines) == 0 {
		pterm.Info.Println("No routines assigned yet.")
		return nil
	}
	data := pterm.TableData{{"ID", "Date", "Name"}}
	for _, r := range routines {
		data = append(data, []string{r.ID, r.ScheduledDate, r.Name})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
