package model

import "errors"

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrTeamNotFound  = errors.New("team not found")
)
