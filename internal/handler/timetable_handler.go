package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/middleware"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	"github.com/noah-isme/campus-timetable-api/internal/service"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, collegeID, userID string, req dto.GenerateRunRequest) (*dto.GenerationResult, error)
	Regenerate(ctx context.Context, collegeID, runID string) (*dto.GenerationResult, error)
	ValidateScope(ctx context.Context, collegeID string, req dto.ValidateScopeRequest) (*dto.ValidationResult, error)
	ValidateRun(ctx context.Context, collegeID, runID string) (*dto.ValidationResult, error)
	Publish(ctx context.Context, collegeID, runID string) (*models.TimetableRun, error)
	EditEntry(ctx context.Context, collegeID, entryID string, req dto.EditEntryRequest) (*models.TimetableEntryDetail, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.TimetableRun, *models.Pagination, error)
	GetRun(ctx context.Context, collegeID, runID string) (*models.TimetableRun, error)
	DeleteRun(ctx context.Context, collegeID, runID string) error
	Entries(ctx context.Context, collegeID, runID string) ([]models.TimetableEntryDetail, error)
	Grid(ctx context.Context, collegeID, runID string, mode dto.GridMode) (*dto.GridView, bool, error)
	Reference(ctx context.Context, collegeID string) (*dto.ReferenceSnapshot, error)
	LecturerTimetable(ctx context.Context, collegeID, lecturerID string) ([]models.TimetableEntryDetail, error)
}

// TimetableHandler exposes timetable generation, publishing and editing endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Reference godoc
// @Summary Reference data for an empty timetable grid
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/reference [get]
func (h *TimetableHandler) Reference(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	snapshot, err := h.service.Reference(c.Request.Context(), claims.CollegeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// ValidateScope godoc
// @Summary Check generation prerequisites without creating a run
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ValidateScopeRequest true "Validation scope"
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) ValidateScope(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ValidateScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validation payload"))
		return
	}
	result, err := h.service.ValidateScope(c.Request.Context(), claims.CollegeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Generate godoc
// @Summary Generate the timetable for a college scope
// @Description Finds or creates the run for (college, course, academic year, semester) and places every eligible unit.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRunRequest true "Generation scope"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/runs [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.GenerateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), claims.CollegeID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, generationStatus(result), result, nil)
}

// Regenerate godoc
// @Summary Regenerate an existing draft or generated run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/runs/{id}/generate [post]
func (h *TimetableHandler) Regenerate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.Regenerate(c.Request.Context(), claims.CollegeID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, generationStatus(result), result, nil)
}

// ValidateRun godoc
// @Summary Check generation prerequisites for a run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs/{id}/validate [post]
func (h *TimetableHandler) ValidateRun(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.ValidateRun(c.Request.Context(), claims.CollegeID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish a generated run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/runs/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	run, err := h.service.Publish(c.Request.Context(), claims.CollegeID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListRuns godoc
// @Summary List timetable runs of the caller's college
// @Tags Timetable
// @Produce json
// @Param status query string false "draft, generated or published"
// @Param course_id query string false "Course ID"
// @Param academic_year query string false "Academic year"
// @Param semester query int false "Semester"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs [get]
func (h *TimetableHandler) ListRuns(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter := models.RunFilter{
		CollegeID:    claims.CollegeID,
		AcademicYear: strings.TrimSpace(c.Query("academic_year")),
		Semester:     queryInt(c, "semester"),
		Page:         queryInt(c, "page"),
		PageSize:     queryInt(c, "page_size"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		value := models.RunStatus(strings.ToLower(status))
		filter.Status = &value
	}
	if courseID := strings.TrimSpace(c.Query("course_id")); courseID != "" {
		filter.CourseID = &courseID
	}

	runs, pagination, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get a timetable run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs/{id} [get]
func (h *TimetableHandler) GetRun(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	run, err := h.service.GetRun(c.Request.Context(), claims.CollegeID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// DeleteRun godoc
// @Summary Delete a draft or generated run
// @Tags Timetable
// @Param id path string true "Run ID"
// @Success 204
// @Router /timetable/runs/{id} [delete]
func (h *TimetableHandler) DeleteRun(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.DeleteRun(c.Request.Context(), claims.CollegeID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Entries godoc
// @Summary List the entries of a run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs/{id}/entries [get]
func (h *TimetableHandler) Entries(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	entries, err := h.service.Entries(c.Request.Context(), claims.CollegeID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Grid godoc
// @Summary Editable grid view of a run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Param mode query string false "course, lecturer or classroom"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs/{id}/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	mode, valid := dto.ParseGridMode(strings.ToLower(strings.TrimSpace(c.Query("mode"))))
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be one of course, lecturer or classroom"))
		return
	}
	view, hit, err := h.service.Grid(c.Request.Context(), claims.CollegeID, c.Param("id"), mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// EditEntry godoc
// @Summary Move or reassign one entry of a generated run
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.EditEntryRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries/{id} [patch]
func (h *TimetableHandler) EditEntry(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.EditEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.service.EditEntry(c.Request.Context(), claims.CollegeID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// LecturerTimetable godoc
// @Summary Published timetable entries of a lecturer
// @Description Lecturers see their own entries. Registrars and principals may pass lecturer_id.
// @Tags Timetable
// @Produce json
// @Param lecturer_id query string false "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/me [get]
func (h *TimetableHandler) LecturerTimetable(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	lecturerID := claims.UserID
	if claims.Role != models.RoleLecturer {
		if requested := strings.TrimSpace(c.Query("lecturer_id")); requested != "" {
			lecturerID = requested
		}
	}
	entries, err := h.service.LecturerTimetable(c.Request.Context(), claims.CollegeID, lecturerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok || claims.CollegeID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func generationStatus(result *dto.GenerationResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Reason {
	case dto.ReasonInternalError:
		return http.StatusInternalServerError
	case dto.ReasonInvalidState:
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}
