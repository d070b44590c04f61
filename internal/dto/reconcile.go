package dto

// ReconcileRequest targets a single enrollment for on-demand reconciliation.
type ReconcileRequest struct {
	LearnerID  string `json:"learnerId" binding:"required"`
	OfferingID string `json:"offeringId" binding:"required"`
}
