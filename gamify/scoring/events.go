package scoring

import (
	"errors"
	"fmt"

	"github.com/notedrop/gamify/gamify/database/models"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the closed set of inbound business events. The aggregator
// dispatches on concrete type; there is no dynamic payload probing.
type Event interface {
	Validate() error
	isEvent()
}

// UploadRecorded is emitted by the file component after a file is stored.
type UploadRecorded struct {
	UserID   string
	FileType models.FileType
	Status   models.FileStatus
}

func (e UploadRecorded) isEvent() {}

func (e UploadRecorded) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: upload event missing user id", ErrInvalidEvent)
	}
	switch e.FileType {
	case models.FileTypeImage, models.FileTypeRaw:
	default:
		return fmt.Errorf("%w: unknown file type %q", ErrInvalidEvent, e.FileType)
	}
	switch e.Status {
	case models.FileStatusPending, models.FileStatusApproved, models.FileStatusRejected:
	default:
		return fmt.Errorf("%w: unknown file status %q", ErrInvalidEvent, e.Status)
	}
	return nil
}

// AITaskRecorded is emitted by the AI component after a task completes.
type AITaskRecorded struct {
	UserID string
}

func (e AITaskRecorded) isEvent() {}

func (e AITaskRecorded) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: ai task event missing user id", ErrInvalidEvent)
	}
	return nil
}

// ReferralRecorded is emitted by the referral component when a referred
// user signs up.
type ReferralRecorded struct {
	ReferrerID     string
	ReferredUserID string
}

func (e ReferralRecorded) isEvent() {}

func (e ReferralRecorded) Validate() error {
	if e.ReferrerID == "" {
		return fmt.Errorf("%w: referral event missing referrer id", ErrInvalidEvent)
	}
	if e.ReferredUserID == "" {
		return fmt.Errorf("%w: referral event missing referred user id", ErrInvalidEvent)
	}
	if e.ReferrerID == e.ReferredUserID {
		return fmt.Errorf("%w: user cannot refer themselves", ErrInvalidEvent)
	}
	return nil
}
