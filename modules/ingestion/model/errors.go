package model

import "errors"

var (
	ErrBatchNotFound    = errors.New("batch not found")
	ErrLeadSourceNotSet = errors.New("lead source not found for slug")
)
