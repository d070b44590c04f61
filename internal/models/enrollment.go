package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusExpired   EnrollmentStatus = "EXPIRED"
	EnrollmentStatusRefunded  EnrollmentStatus = "REFUNDED"
)

// Valid reports whether the status is one of the known values.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCancelled, EnrollmentStatusSuspended,
		EnrollmentStatusExpired, EnrollmentStatusRefunded:
		return true
	}
	return false
}

// UnitCompletion records one curriculum unit's completion state.
type UnitCompletion struct {
	UnitID      string     `json:"unit_id"`
	Position    int        `json:"position"`
	Required    bool       `json:"required"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// UnitCompletions is stored as a JSONB column on the enrollment row.
type UnitCompletions []UnitCompletion

// Value implements driver.Valuer.
func (u UnitCompletions) Value() (driver.Value, error) {
	if u == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(u)
}

// Scan implements sql.Scanner.
func (u *UnitCompletions) Scan(src interface{}) error {
	if src == nil {
		*u = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unit completions: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, u)
}

// Enrollment is the canonical record of one learner's relationship to one
// offering, produced by the ingestion subsystem. This service reads it and
// never writes it.
type Enrollment struct {
	ID                   string           `db:"id" json:"id"`
	LearnerID            string           `db:"learner_id" json:"learner_id"`
	LearnerEmail         string           `db:"learner_email" json:"learner_email"`
	OfferingID           string           `db:"offering_id" json:"offering_id"`
	Status               EnrollmentStatus `db:"status" json:"status"`
	ProgressPercent      float64          `db:"progress_percent" json:"progress_percent"`
	CompletedUnits       int              `db:"completed_units" json:"completed_units"`
	TotalUnits           int              `db:"total_units" json:"total_units"`
	Units                UnitCompletions  `db:"units" json:"units"`
	LastActivityAt       *time.Time       `db:"last_activity_at" json:"last_activity_at,omitempty"`
	LastLoginAt          *time.Time       `db:"last_login_at" json:"last_login_at,omitempty"`
	LoginCount30d        int              `db:"login_count_30d" json:"login_count_30d"`
	ReactivatedAt        *time.Time       `db:"reactivated_at" json:"reactivated_at,omitempty"`
	Refunded             bool             `db:"refunded" json:"refunded"`
	RefundedAt           *time.Time       `db:"refunded_at" json:"refunded_at,omitempty"`
	ManualInactive       bool             `db:"manual_inactive" json:"manual_inactive"`
	ManualInactiveReason *string          `db:"manual_inactive_reason" json:"manual_inactive_reason,omitempty"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for batch iteration over enrollments.
type EnrollmentFilter struct {
	OfferingID   string
	Status       EnrollmentStatus
	UpdatedSince *time.Time
	Page         int
	PageSize     int
}

// Pagination describes list paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
