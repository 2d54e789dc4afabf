package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/face-attendance-api/internal/dto"
	"github.com/noah-isme/face-attendance-api/internal/models"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

type schedulerMock struct {
	created     dto.CreateClassRequest
	regenerated dto.RegenerateScheduleRequest
	err         error
}

func (m *schedulerMock) CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.ClassDetail, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClassDetail{
		Class: models.Class{ID: "class-1", Name: req.Name, TotalSessions: req.TotalSessions},
		Schedule: []models.ScheduledSession{
			{ClassID: "class-1", SessionNumber: 1, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Status: models.ScheduledSessionPending},
		},
	}, nil
}

func (m *schedulerMock) Get(ctx context.Context, classID string) (*models.ClassDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClassDetail{Class: models.Class{ID: classID}}, nil
}

func (m *schedulerMock) Regenerate(ctx context.Context, classID string, req dto.RegenerateScheduleRequest) (*models.ClassDetail, error) {
	m.regenerated = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClassDetail{Class: models.Class{ID: classID, TotalSessions: req.TotalSessions}}, nil
}

type rosterMock struct {
	classID   string
	studentID string
	req       dto.UpsertProfileRequest
	entries   []models.RosterEntry
	err       error
}

func (m *rosterMock) Enroll(ctx context.Context, classID, studentID string, req dto.UpsertProfileRequest) (*models.StudentFaceProfile, error) {
	m.classID, m.studentID, m.req = classID, studentID, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.StudentFaceProfile{ClassID: classID, StudentID: studentID, StudentName: req.StudentName}, nil
}

func (m *rosterMock) List(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.entries, m.err
}

type statsReaderMock struct {
	stats *models.ClassStats
	err   error
}

func (m *statsReaderMock) ClassStats(ctx context.Context, classID string) (*models.ClassStats, error) {
	return m.stats, m.err
}

func TestClassHandlerCreate(t *testing.T) {
	svc := &schedulerMock{}
	h := NewClassHandler(svc, &rosterMock{}, &statsReaderMock{})
	c, w := newTestContext(http.MethodPost, "/classes", `{"name":"Biology","start_date":"2024-01-01","total_sessions":4}`, nil)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Biology", svc.created.Name)
	assert.Equal(t, "2024-01-01", svc.created.StartDate)
	assert.Equal(t, 4, svc.created.TotalSessions)

	var detail models.ClassDetail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &detail))
	assert.Equal(t, "class-1", detail.ID)
	require.Len(t, detail.Schedule, 1)
}

func TestClassHandlerCreateMalformedBody(t *testing.T) {
	h := NewClassHandler(&schedulerMock{}, &rosterMock{}, &statsReaderMock{})
	c, w := newTestContext(http.MethodPost, "/classes", `{"name":`, nil)

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestClassHandlerCreateInvalidSchedule(t *testing.T) {
	svc := &schedulerMock{err: appErrors.Clone(appErrors.ErrInvalidScheduleInput, "total_sessions must be positive")}
	h := NewClassHandler(svc, &rosterMock{}, &statsReaderMock{})
	c, w := newTestContext(http.MethodPost, "/classes", `{"name":"Biology","start_date":"2024-01-01","total_sessions":0}`, nil)

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SCHEDULE_INPUT", decodeEnvelope(t, w).Error.Code)
}

func TestClassHandlerRegenerateLocked(t *testing.T) {
	svc := &schedulerMock{err: appErrors.ErrScheduleLocked}
	h := NewClassHandler(svc, &rosterMock{}, &statsReaderMock{})
	c, w := newTestContext(http.MethodPost, "/classes/class-1/schedule/regenerate", `{"start_date":"2024-02-05","total_sessions":6}`, gin.Params{{Key: "id", Value: "class-1"}})

	h.RegenerateSchedule(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 6, svc.regenerated.TotalSessions)
	assert.Equal(t, "SCHEDULE_LOCKED", decodeEnvelope(t, w).Error.Code)
}

func TestClassHandlerGetNotFound(t *testing.T) {
	h := NewClassHandler(&schedulerMock{err: appErrors.ErrNotFound}, &rosterMock{}, &statsReaderMock{})
	c, w := newTestContext(http.MethodGet, "/classes/missing", "", gin.Params{{Key: "id", Value: "missing"}})

	h.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassHandlerUpsertProfile(t *testing.T) {
	roster := &rosterMock{}
	h := NewClassHandler(&schedulerMock{}, roster, &statsReaderMock{})
	params := gin.Params{{Key: "id", Value: "class-1"}, {Key: "studentId", Value: "student-7"}}
	c, w := newTestContext(http.MethodPut, "/classes/class-1/students/student-7/profile", `{"student_name":"Ana"}`, params)

	h.UpsertProfile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-1", roster.classID)
	assert.Equal(t, "student-7", roster.studentID)
	assert.Equal(t, "Ana", roster.req.StudentName)
}

func TestClassHandlerUpsertProfileInvalidDescriptor(t *testing.T) {
	roster := &rosterMock{err: appErrors.ErrInvalidDescriptor}
	h := NewClassHandler(&schedulerMock{}, roster, &statsReaderMock{})
	params := gin.Params{{Key: "id", Value: "class-1"}, {Key: "studentId", Value: "student-7"}}
	c, w := newTestContext(http.MethodPut, "/classes/class-1/students/student-7/profile", `{"descriptor":[0.1,0.2]}`, params)

	h.UpsertProfile(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DESCRIPTOR", decodeEnvelope(t, w).Error.Code)
	assert.Equal(t, []float32{0.1, 0.2}, roster.req.Descriptor)
}

func TestClassHandlerRosterCount(t *testing.T) {
	roster := &rosterMock{entries: []models.RosterEntry{{StudentID: "a"}, {StudentID: "b"}}}
	h := NewClassHandler(&schedulerMock{}, roster, &statsReaderMock{})
	c, w := newTestContext(http.MethodGet, "/classes/class-1/students", "", gin.Params{{Key: "id", Value: "class-1"}})

	h.Roster(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeEnvelope(t, w).Meta["count"])
}

func TestClassHandlerStats(t *testing.T) {
	stats := &statsReaderMock{stats: &models.ClassStats{ClassID: "class-1", MaxAbsences: 2}}
	h := NewClassHandler(&schedulerMock{}, &rosterMock{}, stats)
	c, w := newTestContext(http.MethodGet, "/classes/class-1/stats", "", gin.Params{{Key: "id", Value: "class-1"}})

	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	var out models.ClassStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &out))
	assert.Equal(t, 2, out.MaxAbsences)
}
