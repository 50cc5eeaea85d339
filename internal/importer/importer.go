// Package importer loads coach-authored routine files into the store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	RoutinesInserted   int
	RoutinesDuplicated int
	RoutinesInvalid    int
}

// Store is where routines are written. storage.DB implements it.
type Store interface {
	CreateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error)
}

// routineFile is the on-disk shape of a routine.
type routineFile struct {
	ID            string      `yaml:"id"`
	MemberID      string      `yaml:"member_id"`
	CoachID       string      `yaml:"coach_id"`
	Name          string      `yaml:"name"`
	ScheduledDate string      `yaml:"scheduled_date"`
	Blocks        []blockFile `yaml:"blocks"`
}

type blockFile struct {
	Name      string         `yaml:"name"`
	Sets      string         `yaml:"sets"`
	Exercises []exerciseFile `yaml:"exercises"`
}

type exerciseFile struct {
	Name     string `yaml:"name"`
	Mode     string `yaml:"mode"`
	Target   string `yaml:"target"`
	Weight   string `yaml:"weight"`
	VideoURL string `yaml:"video_url"`
}

func (f routineFile) routine(tenantID string) models.Routine {
	r := models.Routine{
		ID:            f.ID,
		TenantID:      tenantID,
		MemberID:      f.MemberID,
		CoachID:       f.CoachID,
		Name:          f.Name,
		ScheduledDate: f.ScheduledDate,
	}
	for _, b := range f.Blocks {
		block := models.Block{Name: b.Name, Sets: b.Sets}
		for _, e := range b.Exercises {
			mode := models.RepMode(e.Mode)
			if mode == "" {
				mode = models.ModeReps
			}
			block.Exercises = append(block.Exercises, models.Exercise{
				Name:     e.Name,
				Mode:     mode,
				Target:   e.Target,
				Weight:   e.Weight,
				VideoURL: e.VideoURL,
			})
		}
		r.Blocks = append(r.Blocks, block)
	}
	return r
}

// Importer reads routine YAML files from a directory and inserts them for one tenant.
type Importer struct {
	store    Store
	tenantID string
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer.
func New(store Store, tenantID string, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, tenantID: tenantID, log: log, dryRun: dryRun}
}

// Import processes every .yaml/.yml file directly under dir, in name order.
// Unreadable files and invalid routines are counted and logged, not fatal;
// store failures abort the import.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &imp.stats, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, f); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", filepath.Base(f), err)
		}
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path string) error {
	routines, err := parseFile(path)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	if len(routines) == 0 {
		imp.stats.FilesSkipped++
		return nil
	}
	imp.stats.FilesProcessed++

	for i, rf := range routines {
		r := rf.routine(imp.tenantID)
		if err := r.Validate(); err != nil {
			imp.log.Warn("invalid routine", "file", path, "index", i, "name", r.Name, "error", err)
			imp.stats.RoutinesInvalid++
			continue
		}
		if imp.dryRun {
			imp.stats.RoutinesInserted++
			continue
		}
		created, err := imp.store.CreateRoutine(ctx, r)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			imp.stats.RoutinesDuplicated++
			continue
		}
		if err != nil {
			return err
		}
		imp.log.Debug("routine imported", "id", created.ID, "member", created.MemberID)
		imp.stats.RoutinesInserted++
	}
	return nil
}

// parseFile reads one routine or a list of routines from a YAML file.
// Multiple YAML documents in one file are read in order.
func parseFile(path string) ([]routineFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []routineFile
	dec := yaml.NewDecoder(f)
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}
		switch node.Content[0].Kind {
		case yaml.SequenceNode:
			var list []routineFile
			if err := node.Decode(&list); err != nil {
				return nil, err
			}
			out = append(out, list...)
		case yaml.MappingNode:
			var one routineFile
			if err := node.Decode(&one); err != nil {
				return nil, err
			}
			out = append(out, one)
		default:
			return nil, fmt.Errorf("line %d: expected a routine or a list of routines", node.Content[0].Line)
		}
	}
	return out, nil
}
