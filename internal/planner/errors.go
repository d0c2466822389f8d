package planner

import "errors"

var (
	ErrNoQueryContexts = errors.New("planner: lookup request has no query contexts")
	ErrNoYieldColumns  = errors.New("planner: lookup request has no yield columns")
	ErrIndexNotFound   = errors.New("planner: index not found")
)
