package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/face-attendance-api/internal/facematch"
	"github.com/noah-isme/face-attendance-api/internal/models"
	"github.com/noah-isme/face-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

const (
	testClassID   = "6f1c6f0e-3c51-4d8e-9d38-6c1c0e2e7a01"
	testSessionID = "0c8a1f3e-9b0f-4f7e-8f55-2d8e52a4b9c3"
)

// memoryStore mimics the Postgres constraints the engine relies on.
type memoryStore struct {
	mu        sync.Mutex
	classes   map[string]models.Class
	schedules map[string][]models.ScheduledSession
	profiles  map[string][]models.StudentFaceProfile
	sessions  map[string]*models.AttendanceSession
	records   map[string]map[string]models.AttendanceRecord
	nextID    int
	err       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		classes:   map[string]models.Class{},
		schedules: map[string][]models.ScheduledSession{},
		profiles:  map[string][]models.StudentFaceProfile{},
		sessions:  map[string]*models.AttendanceSession{},
		records:   map[string]map[string]models.AttendanceRecord{},
	}
}

func (m *memoryStore) seedClass(id string, total int, students ...models.StudentFaceProfile) models.Class {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule, _ := GenerateWeeklySchedule(start, total)
	class := models.Class{ID: id, Name: "Class", StartDate: start, TotalSessions: total, MaxAbsences: MaxAbsences(total)}
	for i := range schedule {
		schedule[i].ClassID = id
	}
	m.classes[id] = class
	m.schedules[id] = schedule
	for _, p := range students {
		p.ClassID = id
		m.profiles[id] = append(m.profiles[id], p)
	}
	return class
}

func (m *memoryStore) id() string {
	m.nextID++
	if m.nextID == 1 {
		return testSessionID
	}
	return fmt.Sprintf("1d2e3f40-0000-4000-8000-%012d", m.nextID)
}

// classScheduleStore

func (m *memoryStore) CreateWithSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if class.ID == "" {
		class.ID = testClassID
	}
	for i := range schedule {
		schedule[i].ClassID = class.ID
	}
	m.classes[class.ID] = *class
	m.schedules[class.ID] = append([]models.ScheduledSession(nil), schedule...)
	return nil
}

func (m *memoryStore) ReplaceSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	for _, s := range m.sessions {
		if s.ClassID == class.ID {
			return repository.ErrScheduleInUse
		}
	}
	for i := range schedule {
		schedule[i].ClassID = class.ID
	}
	m.classes[class.ID] = *class
	m.schedules[class.ID] = append([]models.ScheduledSession(nil), schedule...)
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (m *memoryStore) ListSchedule(ctx context.Context, classID string) ([]models.ScheduledSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduledSession(nil), m.schedules[classID]...), nil
}

// faceProfileStore

func (m *memoryStore) Upsert(ctx context.Context, profile *models.StudentFaceProfile) (*models.StudentFaceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[profile.ClassID]; !ok {
		return nil, repository.ErrClassNotFound
	}
	list := m.profiles[profile.ClassID]
	for i := range list {
		if list[i].StudentID == profile.StudentID {
			list[i] = *profile
			return profile, nil
		}
	}
	m.profiles[profile.ClassID] = append(list, *profile)
	return profile, nil
}

func (m *memoryStore) ListByClass(ctx context.Context, classID string) ([]models.StudentFaceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.StudentFaceProfile(nil), m.profiles[classID]...), nil
}

func (m *memoryStore) ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]models.RosterEntry, 0, len(m.profiles[classID]))
	for _, p := range m.profiles[classID] {
		entries = append(entries, models.RosterEntry{StudentID: p.StudentID, StudentName: p.StudentName, HasDescriptor: len(p.Descriptor) > 0})
	}
	return entries, nil
}

func (m *memoryStore) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles[classID] {
		if p.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

// attendanceSessionStore

type memorySessions struct{ *memoryStore }

func (m memorySessions) Create(ctx context.Context, session *models.AttendanceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scheduled *models.ScheduledSession
	for i, s := range m.schedules[session.ClassID] {
		if s.SessionNumber == session.SessionNumber {
			scheduled = &m.schedules[session.ClassID][i]
		}
	}
	if scheduled == nil {
		return sql.ErrNoRows
	}
	if scheduled.Status == models.ScheduledSessionCompleted {
		return repository.ErrScheduledSessionCompleted
	}
	for _, s := range m.sessions {
		if s.ClassID == session.ClassID && s.SessionNumber == session.SessionNumber && s.IsOpen() {
			return repository.ErrOpenSessionExists
		}
	}
	session.ID = m.id()
	session.Status = models.SessionStatusOpen
	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

func (m memorySessions) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m memorySessions) ListByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceSession
	for _, s := range m.sessions {
		if s.ClassID == classID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (m memorySessions) Complete(ctx context.Context, id string, closedAt time.Time, aggregate repository.SessionAggregator) (*models.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !s.IsOpen() {
		copied := *s
		return &copied, repository.ErrSessionClosed
	}
	var records []models.AttendanceRecord
	for _, r := range m.records[id] {
		records = append(records, r)
	}
	var roster []string
	for _, p := range m.profiles[s.ClassID] {
		roster = append(roster, p.StudentID)
	}
	s.SessionStats = aggregate(records, roster)
	s.Status = models.SessionStatusCompleted
	closed := closedAt.UTC()
	s.ClosedAt = &closed
	for i := range m.schedules[s.ClassID] {
		if m.schedules[s.ClassID][i].SessionNumber == s.SessionNumber {
			m.schedules[s.ClassID][i].Status = models.ScheduledSessionCompleted
		}
	}
	copied := *s
	return &copied, nil
}

func (m memorySessions) ListCompletedPresence(ctx context.Context, classID string) ([]models.CompletedSessionPresence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompletedSessionPresence
	for _, s := range m.sessions {
		if s.ClassID != classID || s.IsOpen() {
			continue
		}
		present := map[string]bool{}
		for _, r := range m.records[s.ID] {
			if r.Present {
				present[r.StudentID] = true
			}
		}
		out = append(out, models.CompletedSessionPresence{SessionID: s.ID, SessionNumber: s.SessionNumber, Present: present})
	}
	return out, nil
}

// attendanceRecordStore

type memoryRecords struct{ *memoryStore }

func (m memoryRecords) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[record.SessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !s.IsOpen() {
		return nil, repository.ErrSessionClosed
	}
	if m.records[record.SessionID] == nil {
		m.records[record.SessionID] = map[string]models.AttendanceRecord{}
	}
	stored := *record
	if existing, ok := m.records[record.SessionID][record.StudentID]; ok {
		stored.ID = existing.ID
		if existing.Present == record.Present {
			stored.RecordedAt = existing.RecordedAt
		}
	} else {
		stored.ID = record.StudentID + "-record"
	}
	m.records[record.SessionID][record.StudentID] = stored
	return &stored, nil
}

func (m memoryRecords) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceRecord
	for _, r := range m.records[sessionID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// memoryCache is a CacheRepository backed by a map of raw values.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *models.ClassStats:
		*d = v.(models.ClassStats)
	case *[]facematch.Candidate:
		*d = v.([]facematch.Candidate)
	case *int64:
		*d = v.(int64)
	default:
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stats, ok := value.(*models.ClassStats); ok {
		c.values[key] = *stats
		return nil
	}
	c.values[key] = value
	return nil
}

func (c *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.values[key].(int64)
	n++
	c.values[key] = n
	return n, nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

func (c *memoryCache) generation(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.values[generationKey(key)].(int64)
	return n
}

func descriptorWith(first float32) []float32 {
	d := make([]float32, models.DescriptorLength)
	d[0] = first
	return d
}

func boolPtr(v bool) *bool { return &v }
