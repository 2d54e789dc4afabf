package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/face-attendance-api/internal/dto"
	"github.com/noah-isme/face-attendance-api/internal/models"
	"github.com/noah-isme/face-attendance-api/pkg/response"
)

type sessionEngine interface {
	Open(ctx context.Context, classID string, req dto.OpenSessionRequest) (*models.AttendanceSession, error)
	RecordPresence(ctx context.Context, sessionID string, req dto.RecordPresenceRequest) (*dto.PresenceResult, error)
	Complete(ctx context.Context, sessionID string) (*models.AttendanceSession, error)
	Get(ctx context.Context, sessionID string) (*dto.SessionDetail, error)
	ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	ListByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error)
}

// SessionHandler exposes the attendance session lifecycle.
type SessionHandler struct {
	service sessionEngine
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(svc sessionEngine) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Open godoc
// @Summary Open attendance for a scheduled meeting
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.OpenSessionRequest true "Session number"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.Open(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// ListByClass godoc
// @Summary List sessions of a class
// @Tags Sessions
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/sessions [get]
func (h *SessionHandler) ListByClass(c *gin.Context) {
	sessions, err := h.service.ListByClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, map[string]interface{}{"count": len(sessions)})
}

// Get godoc
// @Summary Get a session with its stats snapshot and records
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// RecordPresence godoc
// @Summary Record presence by face descriptor or manual override
// @Description A descriptor that matches nobody returns 200 with matched=false and writes nothing.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RecordPresenceRequest true "Descriptor or student presence"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sessions/{id}/records [put]
func (h *SessionHandler) RecordPresence(c *gin.Context) {
	var req dto.RecordPresenceRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.RecordPresence(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Records godoc
// @Summary List presence records of a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/records [get]
func (h *SessionHandler) Records(c *gin.Context) {
	records, err := h.service.ListRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Complete godoc
// @Summary Complete a session and persist its stats snapshot
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	session, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}
