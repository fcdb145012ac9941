package interview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIntakeMissing   = errors.New("resume file or job role is required")
	ErrIntakeAmbiguous = errors.New("resume file and job role are mutually exclusive")
)

// IntakeKind names how a session was initiated.
type IntakeKind string

const (
	IntakeResume IntakeKind = "resume"
	IntakeRole   IntakeKind = "role"
)

// Intake carries exactly one of a resume payload or a role label.
// The resume bytes are forwarded untouched.
type Intake struct {
	Role       string
	Resume     []byte
	ResumeName string
}

// RoleIntake starts a session for a job role label.
func RoleIntake(role string) Intake {
	return Intake{Role: strings.TrimSpace(role)}
}

// ResumeIntake starts a session from an uploaded resume.
func ResumeIntake(name string, data []byte) Intake {
	return Intake{Resume: data, ResumeName: name}
}

// Kind reports which initiation this intake carries; it is only meaningful after Validate.
func (i Intake) Kind() IntakeKind {
	if len(i.Resume) > 0 {
		return IntakeResume
	}
	return IntakeRole
}

// Validate enforces the one-of rule.
func (i Intake) Validate() error {
	hasResume := len(i.Resume) > 0
	hasRole := strings.TrimSpace(i.Role) != ""
	switch {
	case hasResume && hasRole:
		return ErrIntakeAmbiguous
	case !hasResume && !hasRole:
		return ErrIntakeMissing
	}
	return nil
}

// LoadingMessage is the text shown while questions are prepared.
func (i Intake) LoadingMessage() string {
	if i.Kind() == IntakeResume {
		return "Analyzing Resume..."
	}
	return fmt.Sprintf("Preparing %s Interview...", i.Role)
}
