package model

import "errors"

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrCandidateNotFound      = errors.New("match candidate not found")
	ErrCandidateNotPending    = errors.New("match candidate is not pending")
)
