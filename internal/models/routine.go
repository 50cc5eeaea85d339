package models

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RepMode is how an exercise target is measured.
type RepMode string

const (
	ModeReps     RepMode = "reps"
	ModeDuration RepMode = "duration"
)

// Difficulty is an athlete's rating of a completed step.
type Difficulty string

const (
	DifficultyNone   Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known ratings (or unrated).
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyNone, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// DateLayout is the layout of Routine.ScheduledDate.
const DateLayout = "2006-01-02"

// Routine is a coach-built workout assigned to one athlete.
type Routine struct {
	ID            string                   `json:"id"`
	TenantID      string                   `json:"tenant_id"`
	MemberID      string                   `json:"member_id"`
	CoachID       string                   `json:"coach_id,omitempty"`
	Name          string                   `json:"name"`
	ScheduledDate string                   `json:"scheduled_date,omitempty"`
	Blocks        []Block                  `json:"blocks"`
	Progress      map[string]ProgressEntry `json:"progress,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// Block groups exercises that are repeated Sets times.
// Sets is free text ("3", "3 rounds", "4x") and parsed loosely.
type Block struct {
	Name      string     `json:"name"`
	Sets      string     `json:"sets"`
	Exercises []Exercise `json:"exercises"`
}

// MaxSets is the largest set count a block may ask for.
const MaxSets = 100

var leadingIntRe = regexp.MustCompile(`^[+-]?\d+`)

// LeadingInt reads the integer at the start of s after trimming space.
// ok is false when s does not start with one. Values too large for an int
// saturate to math.MaxInt or math.MinInt.
func LeadingInt(s string) (n int, ok bool) {
	m := leadingIntRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		if strings.HasPrefix(m, "-") {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	return n, true
}

// Exercise is a single movement inside a block.
type Exercise struct {
	Name     string  `json:"name"`
	Mode     RepMode `json:"mode"`
	Target   string  `json:"target"`
	Weight   string  `json:"weight,omitempty"`
	VideoURL string  `json:"video_url,omitempty"`
}

// ProgressEntry is the athlete's record for one playlist step.
type ProgressEntry struct {
	Completed  bool       `json:"completed"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Validate checks the fields a coach must provide before a routine is stored.
func (r *Routine) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(r.MemberID) == "" {
		return &ValidationError{Field: "member_id", Message: "member_id is required"}
	}
	if r.ScheduledDate != "" {
		if _, err := time.Parse(DateLayout, r.ScheduledDate); err != nil {
			return &ValidationError{Field: "scheduled_date", Message: "scheduled_date must be YYYY-MM-DD"}
		}
	}
	if len(r.Blocks) == 0 {
		return &ValidationError{Field: "blocks", Message: "at least one block is required"}
	}
	for i, b := range r.Blocks {
		if len(b.Exercises) == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("blocks[%d].exercises", i),
				Message: "at least one exercise is required",
			}
		}
		if n, ok := LeadingInt(b.Sets); ok && n > MaxSets {
			return &ValidationError{
				Field:   fmt.Sprintf("blocks[%d].sets", i),
				Message: fmt.Sprintf("sets must be at most %d", MaxSets),
			}
		}
		for j := range b.Exercises {
			if err := b.Exercises[j].Validate(); err != nil {
				ve := err.(*ValidationError)
				ve.Field = fmt.Sprintf("blocks[%d].exercises[%d].%s", i, j, ve.Field)
				return ve
			}
		}
	}
	return nil
}

// Validate checks a single exercise.
func (e *Exercise) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	switch e.Mode {
	case ModeReps, ModeDuration:
	default:
		return &ValidationError{Field: "mode", Message: `mode must be "reps" or "duration"`}
	}
	return nil
}
