package dto

import "time"

// StartRunRequest scopes a batch reconciliation run. All fields are optional;
// an empty body reconciles every enrollment.
type StartRunRequest struct {
	OfferingID   string     `json:"offeringId"`
	Status       string     `json:"status"`
	UpdatedSince *time.Time `json:"updatedSince"`
}

// RunListQuery captures query parameters for listing runs.
type RunListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
