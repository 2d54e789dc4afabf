// Package facematch decides which enrolled student, if any, a captured face descriptor belongs to.
// Everything here is pure computation so it behaves the same wherever the caller runs it.
package facematch

import (
	"math"

	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

const (
	// DescriptorLength is the dimension produced by the external extraction model.
	DescriptorLength = 128
	// Threshold is the exclusive upper bound on Euclidean distance for an accepted match.
	Threshold = 0.6
)

// Candidate is one roster entry considered for a match.
type Candidate struct {
	StudentID  string    `json:"student_id"`
	Descriptor []float32 `json:"descriptor"`
}

// Result describes the best candidate found for a probe.
type Result struct {
	StudentID  string  `json:"student_id,omitempty"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
	Evaluated  int     `json:"evaluated"`
}

// ValidDescriptor reports whether d has the expected length and only finite values.
func ValidDescriptor(d []float32) bool {
	if len(d) != DescriptorLength {
		return false
	}
	for _, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// EuclideanDistance returns the L2 distance between two equal-length vectors.
// Mismatched lengths yield +Inf so they can never win a comparison.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance onto [0,1], 1 being identical descriptors.
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Match finds the roster entry closest to probe. Entries without a valid descriptor are skipped.
// On equal distances the earliest entry in roster order wins. When the best distance is not
// strictly below Threshold the populated Result is returned together with ErrNoMatch.
func Match(probe []float32, roster []Candidate) (Result, error) {
	if !ValidDescriptor(probe) {
		return Result{}, appErrors.ErrInvalidDescriptor
	}

	best := Result{Distance: math.Inf(1)}
	for _, c := range roster {
		if !ValidDescriptor(c.Descriptor) {
			continue
		}
		best.Evaluated++
		d := EuclideanDistance(probe, c.Descriptor)
		if d < best.Distance {
			best.Distance = d
			best.StudentID = c.StudentID
		}
	}
	if best.Evaluated == 0 {
		return Result{}, appErrors.ErrEmptyRoster
	}

	best.Confidence = Confidence(best.Distance)
	if best.Distance < Threshold {
		best.Accepted = true
		return best, nil
	}
	return best, appErrors.ErrNoMatch
}
