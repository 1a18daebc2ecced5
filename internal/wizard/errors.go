package wizard

import (
	"errors"

	"pasarmalam/internal/model"
)

// ==================== 错误定义 ====================

var (
	ErrClosed          = errors.New("wizard: workflow closed")
	ErrInvalidState    = errors.New("wizard: operation not allowed in current state")
	ErrInvalidIndex    = errors.New("wizard: draft index out of range")
	ErrQueryTooShort   = errors.New("wizard: query must be at least 3 characters")
	ErrSuperseded      = errors.New("wizard: superseded by a newer action")
	ErrAuctionDisabled = errors.New("wizard: auction listings are disabled")
	ErrEmptyStore      = errors.New("wizard: no drafts to submit")
	ErrNothingDetected = errors.New("wizard: no boardgames detected")
	ErrBusy            = errors.New("wizard: another operation is in progress")
	ErrNoMatch         = errors.New("wizard: no catalog match")
	ErrNotFound        = errors.New("wizard: session not found")
	ErrForbidden       = errors.New("wizard: session belongs to another user")
)

// ValidationError 字段校验错误，用户修正输入即可继续
type ValidationError = model.FieldError

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation 是否为字段校验错误
func IsValidation(err error) bool {
	return model.IsFieldError(err)
}

// 用户可见的提示
const (
	msgScanFailed      = "Failed to identify boardgames. Try again."
	msgParseFailed     = "Failed to parse text."
	msgNothingDetected = "No boardgames detected."
	msgSaveFailed      = "Failed to save"
	msgCoverNotFound   = "No cover found on BGG."
	msgCoverFailed     = "Failed to fetch BGG cover."
	msgDescFailed      = "Failed to generate description."
	msgSearchFailed    = "Failed to search BGG."
)
