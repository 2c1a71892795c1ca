package model

import "errors"

var ErrConnectionNotFound = errors.New("crm connection not found")
var ErrCrmLeadNotFound = errors.New("crm lead not found")
