// Package playlist flattens a routine's blocks into the ordered list of steps
// an athlete works through during a session.
package playlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meltforce/gymdesk/internal/models"
)

// Step is one (block, exercise, set) entry of the playlist.
type Step struct {
	Key           string          `json:"key"`
	BlockIndex    int             `json:"block_index"`
	ExerciseIndex int             `json:"exercise_index"`
	SetIndex      int             `json:"set_index"`
	SetCount      int             `json:"set_count"`
	BlockName     string          `json:"block_name,omitempty"`
	Exercise      models.Exercise `json:"exercise"`
}

// ParseSetCount reads the leading integer of a block's sets field.
// Anything unparseable, or below one, counts as a single set. Counts above
// models.MaxSets are clamped so a routine stored before validation capped
// them still builds a bounded playlist.
func ParseSetCount(sets string) int {
	n, ok := models.LeadingInt(sets)
	if !ok || n < 1 {
		return 1
	}
	return min(n, models.MaxSets)
}

// Build derives the playlist for blocks.
//
// Order is block-major, then set repetition, then exercise: a block with
// sets "2" and exercises A, B yields A/1, B/1, A/2, B/2. The "set X of Y"
// display depends on this order, so it must not change.
func Build(blocks []models.Block) []Step {
	var steps []Step
	for b, block := range blocks {
		sets := ParseSetCount(block.Sets)
		for s := range sets {
			for e, ex := range block.Exercises {
				steps = append(steps, Step{
					Key:           Key(b, e, s),
					BlockIndex:    b,
					ExerciseIndex: e,
					SetIndex:      s,
					SetCount:      sets,
					BlockName:     block.Name,
					Exercise:      ex,
				})
			}
		}
	}
	return steps
}

// Len returns the playlist length without building it.
func Len(blocks []models.Block) int {
	n := 0
	for _, b := range blocks {
		n += ParseSetCount(b.Sets) * len(b.Exercises)
	}
	return n
}

// Key formats the composite progress key for a step.
func Key(block, exercise, set int) string {
	return fmt.Sprintf("%d-%d-%d", block, exercise, set)
}

// ParseKey splits a progress key into its indices. Only the canonical form
// produced by Key is accepted: no signs, no leading zeros.
func ParseKey(key string) (block, exercise, set int, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid step key %q", key)
	}
	idx := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("invalid step key %q", key)
		}
		idx[i] = n
	}
	if Key(idx[0], idx[1], idx[2]) != key {
		return 0, 0, 0, fmt.Errorf("invalid step key %q", key)
	}
	return idx[0], idx[1], idx[2], nil
}

// Contains reports whether key addresses a step of blocks.
func Contains(blocks []models.Block, key string) bool {
	b, e, s, err := ParseKey(key)
	if err != nil || b >= len(blocks) {
		return false
	}
	return e < len(blocks[b].Exercises) && s < ParseSetCount(blocks[b].Sets)
}
