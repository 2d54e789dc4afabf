package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/face-attendance-api/internal/facematch"
	"github.com/noah-isme/face-attendance-api/internal/models"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

// registerAttendanceValidations installs the descriptor and record_method rules.
func registerAttendanceValidations(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	_ = v.RegisterValidation("descriptor", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().([]float32)
		return ok && facematch.ValidDescriptor(d)
	})
	_ = v.RegisterValidation("record_method", func(fl validator.FieldLevel) bool {
		method := models.RecordMethod(fl.Field().String())
		// face records are only produced by the matcher
		return method == models.RecordMethodManual || method == models.RecordMethodAuto
	})
	return v
}

// validationError maps a validator failure to the typed error callers see. A bad
// descriptor gets its own code so capture clients can prompt a re-capture.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "descriptor" {
				return appErrors.Wrap(err, appErrors.ErrInvalidDescriptor.Code, appErrors.ErrInvalidDescriptor.Status, appErrors.ErrInvalidDescriptor.Message)
			}
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// isEntityID reports whether id can name a class or session row. Anything else cannot
// exist, so lookups short-circuit to not found instead of failing the uuid cast in SQL.
func isEntityID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func classNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

func sessionNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "session not found")
}
