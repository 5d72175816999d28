package triage

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/caresight/caresight/internal/domain/patient"
	"github.com/caresight/caresight/internal/platform/auth"
	"github.com/caresight/caresight/pkg/pagination"
)

// Handler exposes the triage pipeline over HTTP. The renderer consumes the
// returned payload read-only; nothing feeds back into the classifier.
type Handler struct {
	svc      *Service
	patients patient.Repository
}

func NewHandler(svc *Service, patients patient.Repository) *Handler {
	return &Handler{svc: svc, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/patients/:id/assessments", h.ListAssessments)
	readGroup.GET("/assessments/:id", h.GetAssessment)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician"))
	writeGroup.POST("/patients/:id/assessments", h.RunAssessment)
}

type assessmentResponse struct {
	ID uuid.UUID `json:"id,omitempty"`
	*Result
}

// RunAssessment loads the patient's bundle, runs the full classification
// pipeline, persists the verdict, and returns the display payload.
func (h *Handler) RunAssessment(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	bundle, err := patient.LoadBundle(c.Request().Context(), h.patients, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load patient data")
	}

	result, record := h.svc.AssessAndStore(c.Request().Context(), bundle)
	return c.JSON(http.StatusCreated, assessmentResponse{ID: record.ID, Result: result})
}

func (h *Handler) ListAssessments(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	if h.svc.repo == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "assessment history is not enabled")
	}

	params := pagination.FromContext(c)
	records, total, err := h.svc.repo.ListByPatient(c.Request().Context(), patientID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list assessments")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, params.Limit, params.Offset))
}

func (h *Handler) GetAssessment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid assessment id")
	}

	if h.svc.repo == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "assessment history is not enabled")
	}

	rec, err := h.svc.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load assessment")
	}
	return c.JSON(http.StatusOK, rec)
}
