package model

import "errors"

var ErrCanonicalLeadNotFound = errors.New("canonical lead not found")
