package service

import (
	"sort"
	"time"

	"github.com/noah-isme/face-attendance-api/internal/models"
)

// MaxAbsences is the ban threshold: ceil(20% of totalSessions).
func MaxAbsences(totalSessions int) int {
	if totalSessions <= 0 {
		return 0
	}
	return (totalSessions + 4) / 5
}

// IsBanned uses a strict comparison; reaching the threshold exactly is still allowed.
func IsBanned(totalAbsences, maxAbsences int) bool {
	return totalAbsences > maxAbsences
}

// ComputeSessionStats derives the snapshot for one session from its records and roster size.
// A zero roster yields a zero rate instead of dividing by zero.
func ComputeSessionStats(records []models.AttendanceRecord, rosterSize int) models.SessionStats {
	present := 0
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if !r.Present {
			continue
		}
		if _, dup := seen[r.StudentID]; dup {
			continue
		}
		seen[r.StudentID] = struct{}{}
		present++
	}

	stats := models.SessionStats{
		TotalStudents: rosterSize,
		PresentCount:  present,
		AbsentCount:   rosterSize - present,
	}
	if stats.AbsentCount < 0 {
		stats.AbsentCount = 0
	}
	stats.AttendanceRate = percent(present, rosterSize)
	return stats
}

// SessionStatsForRoster ignores records of students no longer on the roster so the
// counts can never exceed the roster size.
func SessionStatsForRoster(records []models.AttendanceRecord, rosterIDs []string) models.SessionStats {
	enrolled := make(map[string]struct{}, len(rosterIDs))
	for _, id := range rosterIDs {
		enrolled[id] = struct{}{}
	}
	filtered := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if _, ok := enrolled[r.StudentID]; ok {
			filtered = append(filtered, r)
		}
	}
	return ComputeSessionStats(filtered, len(enrolled))
}

// ComputeClassStats rolls completed sessions up per student. A student with no present
// record in a completed session is absent for it.
func ComputeClassStats(class models.Class, roster []models.RosterEntry, completed []models.CompletedSessionPresence, now time.Time) models.ClassStats {
	stats := models.ClassStats{
		ClassID:           class.ID,
		TotalSessions:     class.TotalSessions,
		CompletedSessions: len(completed),
		MaxAbsences:       class.MaxAbsences,
		TotalStudents:     len(roster),
		Students:          make([]models.StudentRollup, 0, len(roster)),
		GeneratedAt:       now.UTC(),
	}

	totalPresent := 0
	for _, student := range roster {
		present := 0
		for _, session := range completed {
			if session.Present[student.StudentID] {
				present++
			}
		}
		absences := len(completed) - present
		banned := IsBanned(absences, class.MaxAbsences)
		if banned {
			stats.BannedCount++
		}
		totalPresent += present
		stats.Students = append(stats.Students, models.StudentRollup{
			StudentID:      student.StudentID,
			StudentName:    student.StudentName,
			PresentCount:   present,
			TotalAbsences:  absences,
			AttendanceRate: percent(present, len(completed)),
			IsBanned:       banned,
		})
	}

	sort.SliceStable(stats.Students, func(i, j int) bool {
		return stats.Students[i].StudentID < stats.Students[j].StudentID
	})
	stats.AverageRate = percent(totalPresent, len(roster)*len(completed))
	return stats
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
