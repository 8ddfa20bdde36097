// Package stage defines the contract between the workflow manager and the
// pipeline stages that move videos and sessions through their lifecycles.
package stage

import (
	"context"

	"qoed/internal/store"
)

// VideoHandler is implemented by stages that advance a video.
type VideoHandler interface {
	Prepare(context.Context, *store.Video) error
	Execute(context.Context, *store.Video) error
	HealthCheck(context.Context) Health
}

// SessionHandler is implemented by stages that advance a session.
type SessionHandler interface {
	Prepare(context.Context, *store.Session) error
	Execute(context.Context, *store.Session) error
	HealthCheck(context.Context) Health
}
