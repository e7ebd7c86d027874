package app

import (
	"context"

	"github.com/stacklok/gitrepo-server/internal/notify"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// BackgroundWorker is a component running for the lifetime of the app
type BackgroundWorker interface {
	Start(ctx context.Context) error
	Stop() error
}

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// CloneOrchestrator runs background clones and reconciles stale clone records
	CloneOrchestrator BackgroundWorker

	// RepositoryService provides repository business logic
	RepositoryService service.RepositoryService

	// Hub fans clone notifications out to connected websockets
	Hub *notify.Hub
}
