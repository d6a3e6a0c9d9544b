package calibration

import (
	"errors"
	"fmt"
)

// ErrCalibration matches every *CalibrationError via errors.Is.
var ErrCalibration = errors.New("calibration failed")

// CalibrationError reports insufficient or degenerate correspondences, or a
// homography that cannot be inverted. It is fatal to the calibration attempt.
type CalibrationError struct {
	Reason string
	Err    error
}

func (e *CalibrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calibration: %s: %v", e.Reason, e.Err)
	}
	return "calibration: " + e.Reason
}

func (e *CalibrationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCalibration) match any CalibrationError.
func (e *CalibrationError) Is(target error) bool {
	return target == ErrCalibration
}

func calibrationErrorf(format string, args ...any) *CalibrationError {
	return &CalibrationError{Reason: fmt.Sprintf(format, args...)}
}
