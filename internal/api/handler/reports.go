package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/analysis"
	"github.com/kiranshivaraju/bugboard/internal/api/response"
	"github.com/kiranshivaraju/bugboard/internal/reports"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/kiranshivaraju/bugboard/internal/validate"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

const maxBodyBytes = 1 << 20

// ReportService defines the interface the report handlers depend on.
type ReportService interface {
	Submit(ctx context.Context, in models.NewReport) (*models.BugReport, error)
	SubmitBatch(ctx context.Context, ins []models.NewReport) ([]*models.BugReport, error)
	List(ctx context.Context, team string) ([]*models.BugReport, error)
	Clusters(ctx context.Context) ([]models.IssueCluster, error)
	Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	MatchTeams(ctx context.Context, id uuid.UUID) (*models.TeamMatch, error)
}

type reportRequest struct {
	Team        string              `json:"team"`
	Email       string              `json:"email"`
	URL         string              `json:"url"`
	Description string              `json:"description"`
	TestSteps   string              `json:"test_steps"`
	Images      []models.Attachment `json:"images"`
}

func (r reportRequest) toNewReport() models.NewReport {
	return models.NewReport{
		Team:        r.Team,
		Email:       r.Email,
		URL:         r.URL,
		Description: r.Description,
		TestSteps:   r.TestSteps,
		Images:      r.Images,
	}
}

// NewCreateReportHandler returns an http.HandlerFunc for POST /api/v1/reports.
// The body is either one report or {"reports": [...]}, which is stored
// all-or-nothing.
func NewCreateReportHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			reportRequest
			Reports []reportRequest `json:"reports"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Reports == nil {
			in := req.reportRequest.toNewReport()
			if err := validate.Report(in); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
					"Report is invalid", err)
				return
			}
			stored, err := svc.Submit(r.Context(), in)
			if err != nil {
				writeSubmitError(w, err)
				return
			}
			response.Created(w, stored)
			return
		}

		ins := make([]models.NewReport, len(req.Reports))
		for i, item := range req.Reports {
			ins[i] = item.toNewReport()
			if err := validate.Report(ins[i]); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
					"Report is invalid", map[string]any{"index": i, "fields": err})
				return
			}
		}
		stored, err := svc.SubmitBatch(r.Context(), ins)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		response.Created(w, stored)
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var details any
	var be *reports.BatchError
	if errors.As(err, &be) {
		details = map[string]int{"index": be.Index}
	}

	switch {
	case errors.Is(err, reports.ErrEmptyBatch):
		response.Error(w, http.StatusBadRequest, "EMPTY_BATCH",
			"Batch contains no reports", nil)
	case errors.Is(err, reports.ErrInvalidReport):
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
			"Team and URL must not be empty", details)
	case errors.Is(err, reports.ErrLockTimeout):
		response.Error(w, http.StatusServiceUnavailable, "SUBMISSION_BUSY",
			"Another submission for the same issue is in progress", details)
	case errors.Is(err, analysis.ErrLookup):
		response.Error(w, http.StatusServiceUnavailable, "DUPLICATE_LOOKUP_FAILED",
			"Could not check for duplicates; nothing was stored", details)
	default:
		response.InternalError(w, details)
	}
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	maxPage          = 1_000_000
)

// NewListReportsHandler returns an http.HandlerFunc for GET /api/v1/reports.
// Query parameters: team, page (from 1) and limit.
func NewListReportsHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := intParam(q.Get("page"), 1)
		if err != nil || page < 1 || page > maxPage {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
			return
		}
		limit, err := intParam(q.Get("limit"), defaultPageLimit)
		if err != nil || limit < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return
		}
		limit = min(limit, maxPageLimit)

		list, err := svc.List(r.Context(), q.Get("team"))
		if err != nil {
			response.InternalError(w, nil)
			return
		}
		items, meta := response.Paginate(list, page, limit)
		response.Collection(w, items, meta)
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// NewMatchTeamsHandler returns an http.HandlerFunc for
// GET /api/v1/reports/{reportID}/teams.
func NewMatchTeamsHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REPORT_ID", "Invalid report ID format", nil)
			return
		}

		match, err := svc.MatchTeams(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found", nil)
				return
			}
			response.InternalError(w, nil)
			return
		}
		response.JSON(w, match)
	}
}

// NewClustersHandler returns an http.HandlerFunc for GET /api/v1/clusters.
func NewClustersHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clusters, err := svc.Clusters(r.Context())
		if err != nil {
			response.InternalError(w, nil)
			return
		}
		response.JSON(w, clusters)
	}
}

// NewLeaderboardHandler returns an http.HandlerFunc for GET /api/v1/leaderboard.
func NewLeaderboardHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := svc.Leaderboard(r.Context())
		if err != nil {
			response.InternalError(w, nil)
			return
		}
		response.JSON(w, board)
	}
}
