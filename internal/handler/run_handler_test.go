package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/engage-sync-api/internal/dto"
	"github.com/brightpath-labs/engage-sync-api/internal/middleware"
	"github.com/brightpath-labs/engage-sync-api/internal/models"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
)

type runHandlerLister struct{}

func (runHandlerLister) ListForBatch(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	return nil, 0, nil
}

type runHandlerStore struct {
	mu   sync.Mutex
	runs map[string]models.ReconciliationRun
}

func newRunHandlerStore() *runHandlerStore {
	return &runHandlerStore{runs: make(map[string]models.ReconciliationRun)}
}

func (s *runHandlerStore) Create(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(s.runs)+1)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *runHandlerStore) Finalize(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *runHandlerStore) FindByID(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &run, nil
}

func (s *runHandlerStore) List(ctx context.Context, filter models.RunFilter) ([]models.ReconciliationRun, int, error) {
	return nil, 0, nil
}

func (s *runHandlerStore) RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error {
	return nil
}

func (s *runHandlerStore) ListOutcomes(ctx context.Context, runID string) ([]models.RunOutcome, error) {
	return nil, nil
}

type runHandlerReconciler struct{}

func (runHandlerReconciler) Reconcile(ctx context.Context, enrollment *models.Enrollment) (*models.ReconciliationResult, error) {
	return &models.ReconciliationResult{Success: true, NoChange: true}, nil
}

func newRunFixture(t *testing.T) *RunHandler {
	t.Helper()
	batch := service.NewBatchService(runHandlerLister{}, newRunHandlerStore(), runHandlerReconciler{},
		service.BatchConfig{Workers: 1, PageSize: 10, RunTimeout: time.Minute}, nil)
	export := service.NewExportService(batch, nil, nil, time.Hour, nil, nil, nil)
	return NewRunHandler(batch, export)
}

func TestRunHandlerStartAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRunFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.StartRunRequest{OfferingID: "off-1", Status: "active"})
	req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Email: "ops@example.com"})

	handler.Start(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data models.ReconciliationRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.ID)
	assert.Equal(t, "ops@example.com", envelope.Data.TriggeredBy)
	assert.Equal(t, models.RunStatusRunning, envelope.Data.Status)
}

func TestRunHandlerStartRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRunFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.StartRunRequest{Status: "paused"})
	req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Start(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandlerExportUnknownRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRunFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/runs/run-404/export", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "run-404"}}

	handler.Export(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
