package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// EnrollmentRepository reads canonical enrollments produced by the ingestion
// subsystem. This service never writes to the enrollments table.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, learner_id, learner_email, offering_id, status, progress_percent,
        completed_units, total_units, units, last_activity_at, last_login_at, login_count_30d,
        reactivated_at, refunded, refunded_at, manual_inactive, manual_inactive_reason, updated_at`

// FindByLearnerAndOffering returns the enrollment for one (learner, offering) pair.
func (r *EnrollmentRepository) FindByLearnerAndOffering(ctx context.Context, learnerID, offeringID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE learner_id = $1 AND offering_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, learnerID, offeringID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListForBatch returns one page of enrollments matching the filter, ordered
// by ID so batch iteration is stable across pages.
func (r *EnrollmentRepository) ListForBatch(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.UpdatedSince != nil {
		conditions = append(conditions, fmt.Sprintf("updated_at >= $%d", len(args)+1))
		args = append(args, *filter.UpdatedSince)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 1000 {
		size = 200
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY id LIMIT %d OFFSET %d`,
		enrollmentColumns, clause, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}
