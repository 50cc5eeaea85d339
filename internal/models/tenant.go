package models

import "time"

// Role is a member's permission level inside a tenant.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCoach   Role = "coach"
	RoleAthlete Role = "athlete"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleAthlete:
		return true
	}
	return false
}

// Tenant is a gym account and its subscription state.
type Tenant struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name,omitempty"`
	Plan               string    `json:"plan,omitempty"`
	CustomerID         string    `json:"customer_id,omitempty"`
	SubscriptionID     string    `json:"subscription_id,omitempty"`
	SubscriptionStatus string    `json:"subscription_status,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ValidationError is a field-level input problem caught before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
