package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/timer"
	"github.com/meltforce/gymdesk/internal/tracker"
)

const helpText = `Commands: n next, b back, d done/undo, e|m|h rate easy/medium/hard,
t start/pause/resume timer, l list steps, q quit`

type command struct {
	name string
	arg  string
}

func parseCommand(line string) command {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}
	}
	cmd := command{name: fields[0]}
	if len(fields) > 1 {
		cmd.arg = fields[1]
	}
	switch cmd.name {
	case "next":
		cmd.name = "n"
	case "back", "prev":
		cmd.name = "b"
	case "done":
		cmd.name = "d"
	case "easy":
		cmd.name = "e"
	case "medium":
		cmd.name = "m"
	case "hard":
		cmd.name = "h"
	case "timer":
		cmd.name = "t"
	case "list":
		cmd.name = "l"
	case "quit", "exit":
		cmd.name = "q"
	}
	return cmd
}

var ratings = map[string]models.Difficulty{
	"e": models.DifficultyEasy,
	"m": models.DifficultyMedium,
	"h": models.DifficultyHard,
}

// execute applies one command. quit reports that the user asked to stop.
func execute(ctx context.Context, tr *tracker.Tracker, cmd command) (quit bool, err error) {
	key := tr.Current().Key
	switch cmd.name {
	case "":
		return false, nil
	case "n":
		ended, err := tr.Advance(ctx)
		if err != nil || ended {
			return ended, err
		}
		showStep(tr)
	case "b":
		before := tr.Index()
		if err := tr.Retreat(ctx); err != nil {
			return false, err
		}
		if tr.Index() != before {
			showStep(tr)
		}
	case "d":
		done := !tr.Progress()[key].Completed
		if err := tr.SetCompletion(ctx, key, done); err != nil {
			return false, err
		}
		pterm.Success.Printfln("%s marked %s", tr.Current().Exercise.Name, map[bool]string{true: "done", false: "not done"}[done])
	case "e", "m", "h":
		if err := tr.SetDifficulty(ctx, key, ratings[cmd.name]); err != nil {
			return false, err
		}
		pterm.Success.Printfln("Rated %s", ratings[cmd.name])
	case "t":
		return false, toggleTimer(tr)
	case "l":
		showPlaylist(tr)
	case "q":
		return true, nil
	default:
		pterm.Info.Println(helpText)
	}
	return false, nil
}

func toggleTimer(tr *tracker.Tracker) error {
	t := tr.Timer()
	if t == nil {
		return fmt.Errorf("%s is a reps exercise; no timer", tr.Current().Exercise.Name)
	}
	switch t.State() {
	case timer.Idle:
		pterm.Info.Printfln("Get ready: %d", timer.CountdownTicks)
		return t.Start()
	case timer.Running:
		pterm.Info.Println("Paused")
		return t.Pause()
	case timer.Paused:
		pterm.Info.Println("Resumed")
		return t.Resume()
	}
	return nil
}

// tickTimer advances the current step's timer by one second.
func tickTimer(tr *tracker.Tracker) {
	t := tr.Timer()
	if t == nil {
		return
	}
	before := t.State()
	if before != timer.Countdown && before != timer.Running {
		return
	}
	state, err := t.Tick()
	if err != nil {
		pterm.Warning.Println(err)
	}
	switch state {
	case timer.Countdown:
		pterm.Info.Printfln("%d", int(t.Remaining().Seconds()))
	case timer.Running:
		if before == timer.Countdown {
			pterm.Success.Println("Go!")
		}
		if r := int(t.Remaining().Seconds()); r <= 3 || r%10 == 0 {
			pterm.Printfln("%s left", pterm.Yellow(fmt.Sprintf("%02d:%02d", r/60, r%60)))
		}
	case timer.Finished:
		pterm.Success.Println("Time! Mark it done with d, then n for the next step.")
	}
}

func showStep(tr *tracker.Tracker) {
	step := tr.Current()
	ex := step.Exercise
	title := fmt.Sprintf("Step %d/%d: %s", tr.Index()+1, tr.Len(), ex.Name)
	lines := []string{fmt.Sprintf("Set %d of %d", step.SetIndex+1, step.SetCount)}
	if step.BlockName != "" {
		lines = append(lines, "Block: "+step.BlockName)
	}
	switch ex.Mode {
	case models.ModeDuration:
		lines = append(lines, fmt.Sprintf("Work: %s (t to start)", timer.ParseDuration(ex.Target)))
	default:
		lines = append(lines, "Reps: "+ex.Target)
	}
	if ex.Weight != "" {
		lines = append(lines, "Weight: "+ex.Weight)
	}
	if ex.VideoURL != "" {
		lines = append(lines, "Video: "+ex.VideoURL)
	}
	if entry, ok := tr.Progress()[step.Key]; ok && (entry.Completed || entry.Difficulty != "") {
		lines = append(lines, fmt.Sprintf("Recorded: done=%v difficulty=%s", entry.Completed, entry.Difficulty))
	}
	pterm.DefaultBox.WithTitle(title).Println(strings.Join(lines, "\n"))
}

func showPlaylist(tr *tracker.Tracker) {
	progress := tr.Progress()
	data := pterm.TableData{{"#", "Exercise", "Set", "Done", "Difficulty"}}
	for i, s := range tr.Steps() {
		marker := fmt.Sprint(i + 1)
		if i == tr.Index() {
			marker = "> " + marker
		}
		entry := progress[s.Key]
		done := ""
		if entry.Completed {
			done = "yes"
		}
		data = append(data, []string{marker, s.Exercise.Name, fmt.Sprintf("%d/%d", s.SetIndex+1, s.SetCount), done, string(entry.Difficulty)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}
