package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/face-attendance-api/internal/dto"
	"github.com/noah-isme/face-attendance-api/internal/models"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
	"github.com/noah-isme/face-attendance-api/pkg/response"
)

type classScheduler interface {
	CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.ClassDetail, error)
	Get(ctx context.Context, classID string) (*models.ClassDetail, error)
	Regenerate(ctx context.Context, classID string, req dto.RegenerateScheduleRequest) (*models.ClassDetail, error)
}

type rosterManager interface {
	Enroll(ctx context.Context, classID, studentID string, req dto.UpsertProfileRequest) (*models.StudentFaceProfile, error)
	List(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type classStatsReader interface {
	ClassStats(ctx context.Context, classID string) (*models.ClassStats, error)
}

// ClassHandler exposes class, schedule, roster and rollup endpoints.
type ClassHandler struct {
	scheduler classScheduler
	roster    rosterManager
	stats     classStatsReader
}

// NewClassHandler constructs a class handler.
func NewClassHandler(scheduler classScheduler, roster rosterManager, stats classStatsReader) *ClassHandler {
	return &ClassHandler{scheduler: scheduler, roster: roster, stats: stats}
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return false
	}
	return true
}

// Create godoc
// @Summary Create class and generate its weekly schedule
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.scheduler.CreateClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get class with schedule
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	detail, err := h.scheduler.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// RegenerateSchedule godoc
// @Summary Replace the class schedule before any session has been opened
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.RegenerateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/schedule/regenerate [post]
func (h *ClassHandler) RegenerateSchedule(c *gin.Context) {
	var req dto.RegenerateScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.scheduler.Regenerate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// UpsertProfile godoc
// @Summary Enroll a student or replace their face descriptor
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.UpsertProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/students/{studentId}/profile [put]
func (h *ClassHandler) UpsertProfile(c *gin.Context) {
	var req dto.UpsertProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.roster.Enroll(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Roster godoc
// @Summary List enrolled students
// @Tags Roster
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	entries, err := h.roster.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Stats godoc
// @Summary Per-student attendance rollup across completed sessions
// @Tags Stats
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/stats [get]
func (h *ClassHandler) Stats(c *gin.Context) {
	stats, err := h.stats.ClassStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
