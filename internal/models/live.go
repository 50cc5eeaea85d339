package models

import "time"

// LiveStatus is the lifecycle state of a LiveSession.
type LiveStatus string

const (
	LiveActive    LiveStatus = "active"
	LiveCompleted LiveStatus = "completed"
)

// LiveSession is the ephemeral snapshot an athlete's device publishes while a
// workout is running. It is keyed by athlete id and deleted when the session ends.
type LiveSession struct {
	AthleteID       string     `json:"athlete_id"`
	TenantID        string     `json:"tenant_id"`
	RoutineID       string     `json:"routine_id"`
	RoutineName     string     `json:"routine_name,omitempty"`
	CurrentExercise string     `json:"current_exercise"`
	CurrentIndex    int        `json:"current_index"`
	TotalSteps      int        `json:"total_steps"`
	LastDifficulty  Difficulty `json:"last_difficulty,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Status          LiveStatus `json:"status"`
}

// LivePatch is a merge-write against a LiveSession. Nil fields are left untouched.
type LivePatch struct {
	TenantID        *string     `json:"tenant_id,omitempty"`
	RoutineID       *string     `json:"routine_id,omitempty"`
	RoutineName     *string     `json:"routine_name,omitempty"`
	CurrentExercise *string     `json:"current_exercise,omitempty"`
	CurrentIndex    *int        `json:"current_index,omitempty"`
	TotalSteps      *int        `json:"total_steps,omitempty"`
	LastDifficulty  *Difficulty `json:"last_difficulty,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
	Status          *LiveStatus `json:"status,omitempty"`
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
