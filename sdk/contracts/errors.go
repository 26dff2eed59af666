package contracts

import (
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error taxonomy shared by the capture and display pipelines.
var (
	ErrNotReady           = errors.New("reference notes unavailable")
	ErrDeviceUnavailable  = errors.New("input device unavailable")
	ErrNoNotesCaptured    = errors.New("no notes captured")
	ErrSchemaUnavailable  = errors.New("wire schema not loaded")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrGeometryUnresolved = errors.New("geometry unresolved")

	ErrStartCooldown     = errors.New("start requested during cooldown")
	ErrInvalidTransition = errors.New("invalid capture state transition")
)

// Tag kinds attached to taxonomy errors.
const (
	KindNotReady           ftag.Kind = "not_ready"
	KindDeviceUnavailable  ftag.Kind = "device_unavailable"
	KindNoNotesCaptured    ftag.Kind = "no_notes_captured"
	KindSchemaUnavailable  ftag.Kind = "schema_unavailable"
	KindSubmissionFailed   ftag.Kind = "submission_failed"
	KindGeometryUnresolved ftag.Kind = "geometry_unresolved"
)

var kinds = map[error]ftag.Kind{
	ErrNotReady:           KindNotReady,
	ErrDeviceUnavailable:  KindDeviceUnavailable,
	ErrNoNotesCaptured:    KindNoNotesCaptured,
	ErrSchemaUnavailable:  KindSchemaUnavailable,
	ErrSubmissionFailed:   KindSubmissionFailed,
	ErrGeometryUnresolved: KindGeometryUnresolved,
}

// Fail wraps cause under a taxonomy sentinel. desc is the user-facing sentence shown in notifications.
func Fail(sentinel, cause error, desc string) error {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	wrappers := []fault.Wrapper{fmsg.WithDesc(sentinel.Error(), desc)}
	if kind, ok := kinds[sentinel]; ok {
		wrappers = append(wrappers, ftag.With(kind))
	}
	return fault.Wrap(err, wrappers...)
}

// IsUserVisible reports whether err belongs to the part of the taxonomy surfaced as a notification.
func IsUserVisible(err error) bool {
	return errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrNoNotesCaptured) ||
		errors.Is(err, ErrSubmissionFailed)
}

// UserMessage is the text to show the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return err.Error()
}
