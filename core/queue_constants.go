package core

import (
	"errors"
	"time"
)

// Redis keys for the view revalidation queue and the visibility timeout of a reserved job.
const (
	RevalidatePendingKey    = "revalidate:pending"
	RevalidateProcessingKey = "revalidate:processing"
	// DefaultVisibilityTimeout is how long a worker may hold a job before it is requeued.
	DefaultVisibilityTimeout = 30 * time.Second
)

// ErrUnknownView marks a revalidation job whose path has no registered renderer.
var ErrUnknownView = errors.New("unknown view")
