package playlist

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/meltforce/gymdesk/internal/models"
)

func ex(name string) models.Exercise {
	return models.Exercise{Name: name, Mode: models.ModeReps, Target: "10"}
}

// TestBuildSetOrder verifies the order of a single block with two sets and two
// exercises: every exercise of set 0, then every exercise of set 1.
func TestBuildSetOrder(t *testing.T) {
	blocks := []models.Block{{Name: "A", Sets: "2", Exercises: []models.Exercise{ex("Squat"), ex("Row")}}}

	got := Build(blocks)

	type idx struct{ B, E, S int }
	var order []idx
	for _, s := range got {
		order = append(order, idx{s.BlockIndex, s.ExerciseIndex, s.SetIndex})
	}
	want := []idx{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 1, 1}}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got[2].Key != "0-0-1" {
		t.Errorf("step 2 key = %q, want 0-0-1", got[2].Key)
	}
	if got[3].Exercise.Name != "Row" || got[3].SetCount != 2 {
		t.Errorf("step 3 = %+v", got[3])
	}
}

// TestBuildLength verifies the playlist length equals the sum of sets times
// exercises over all blocks, and that blocks appear in order.
func TestBuildLength(t *testing.T) {
	blocks := []models.Block{
		{Sets: "3", Exercises: []models.Exercise{ex("a"), ex("b")}},
		{Sets: "4 rounds", Exercises: []models.Exercise{ex("c")}},
		{Sets: "", Exercises: []models.Exercise{ex("d"), ex("e"), ex("f")}},
	}

	got := Build(blocks)
	if len(got) != 3*2+4*1+1*3 {
		t.Fatalf("len = %d, want 13", len(got))
	}
	if Len(blocks) != len(got) {
		t.Errorf("Len = %d, want %d", Len(blocks), len(got))
	}

	last := -1
	for _, s := range got {
		if s.BlockIndex < last {
			t.Fatalf("block %d after block %d", s.BlockIndex, last)
		}
		last = s.BlockIndex
	}
}

// TestBuildEmpty verifies blocks without exercises contribute nothing.
func TestBuildEmpty(t *testing.T) {
	if got := Build([]models.Block{{Sets: "5"}}); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// TestParseSetCount verifies loose parsing of the free-text sets field.
func TestParseSetCount(t *testing.T) {
	tests := map[string]int{
		"3":        3,
		" 4 ":      4,
		"5x":       5,
		"2 rounds": 2,
		"":         1,
		"three":    1,
		"0":        1,
		"-2":       1,
		"+3":       3,
	}
	for in, want := range tests {
		if got := ParseSetCount(in); got != want {
			t.Errorf("ParseSetCount(%q) = %d, want %d", in, got, want)
		}
	}
}

// TestParseSetCountClamps verifies oversized counts stay bounded.
func TestParseSetCountClamps(t *testing.T) {
	for _, in := range []string{"2000000000", "99999999999999999999 rounds"} {
		if got := ParseSetCount(in); got != models.MaxSets {
			t.Errorf("ParseSetCount(%q) = %d, want %d", in, got, models.MaxSets)
		}
	}
	blocks := []models.Block{{Sets: "2000000000", Exercises: []models.Exercise{ex("a"), ex("b")}}}
	if got, want := len(Build(blocks)), 2*models.MaxSets; got != want {
		t.Errorf("len(Build) = %d, want %d", got, want)
	}
}

// TestParseKey verifies round-tripping and rejection of malformed keys.
func TestParseKey(t *testing.T) {
	b, e, s, err := ParseKey(Key(2, 0, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != 2 || e != 0 || s != 11 {
		t.Errorf("got %d-%d-%d", b, e, s)
	}

	for _, bad := range []string{"", "1-2", "1-2-3-4", "a-b-c", "1--2", "00-0-0", "+0-0-1", "0-00-0", " 0-0-0"} {
		if _, _, _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) should fail", bad)
		}
	}
}

// TestContains verifies key bounds checking against a routine's blocks.
func TestContains(t *testing.T) {
	blocks := []models.Block{{Sets: "2", Exercises: []models.Exercise{ex("a"), ex("b")}}}
	if !Contains(blocks, "0-1-1") {
		t.Error("0-1-1 should be in range")
	}
	for _, k := range []string{"1-0-0", "0-2-0", "0-0-2", "x"} {
		if Contains(blocks, k) {
			t.Errorf("%q should be out of range", k)
		}
	}
}
