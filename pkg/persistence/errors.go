package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrMissionNotFound indicates a mission was not found by the given identifier.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrRunNotFound indicates no run matched the lookup.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidMission indicates a mission could not be stored as given.
	ErrInvalidMission = errors.New("invalid mission")
)

// MissionError wraps mission-related errors with additional context.
type MissionError struct {
	Op        string // Operation being performed (e.g., "MissionByID", "SaveRun")
	MissionID string
	Err       error
	Message   string
}

func (e *MissionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for mission %s: %s (%v)", e.Op, e.MissionID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for mission %s: %v", e.Op, e.MissionID, e.Err)
}

func (e *MissionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for mission errors.
func (e *MissionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMissionError creates a new mission error with context.
func NewMissionError(op, missionID string, err error) *MissionError {
	return &MissionError{
		Op:        op,
		MissionID: missionID,
		Err:       err,
	}
}

// IsMissionNotFound checks if an error indicates a mission was not found.
func IsMissionNotFound(err error) bool {
	return errors.Is(err, ErrMissionNotFound)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
