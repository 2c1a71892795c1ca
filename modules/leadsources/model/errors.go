package model

import "errors"

var (
	ErrLeadSourceNotFound = errors.New("lead source not found")
	ErrSlugRequired       = errors.New("lead source slug is required")
)

type ErrorCode string

const (
	CodeLeadSourceNotFound ErrorCode = "LEAD_SOURCE_NOT_FOUND"
	CodeSlugRequired       ErrorCode = "SLUG_REQUIRED"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

func GetErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrLeadSourceNotFound):
		return CodeLeadSourceNotFound
	case errors.Is(err, ErrSlugRequired):
		return CodeSlugRequired
	default:
		return CodeInternalError
	}
}

func GetErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrLeadSourceNotFound):
		return "Lead source not found"
	case errors.Is(err, ErrSlugRequired):
		return "Lead source slug is required"
	default:
		return "Internal server error"
	}
}
