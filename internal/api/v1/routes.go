// Package v1 provides the REST handlers of the repository API.
package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/gitrepo-server/internal/api/common"
	"github.com/stacklok/gitrepo-server/internal/auth"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// Routes holds the dependencies of the repository handlers
type Routes struct {
	service service.RepositoryService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.RepositoryService) *Routes {
	return &Routes{service: svc}
}

// Router creates the /v1/repos router
func Router(svc service.RepositoryService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/", routes.listRepositories)
	r.Post("/", routes.initRepository)
	r.Post("/clone", routes.cloneRepository)

	r.Route("/{name}", func(r chi.Router) {
		r.Delete("/", routes.deleteRepository)
		r.Get("/clone-status", routes.getCloneStatus)
		r.Post("/rename", routes.renameRepository)

		r.Get("/commits", routes.listCommits)
		r.Post("/commits", routes.createCommit)
		r.Get("/commits/count", routes.countCommits)
		r.Get("/commits/{id}", routes.getCommit)
		r.Get("/compare", routes.compare)

		r.Get("/tree", routes.getTree)
		r.Get("/files", routes.getFile)
		r.Put("/files", routes.updateFile)

		r.Post("/pull", routes.pull)
		r.Get("/branches", routes.listBranches)
		r.Get("/tags", routes.listTags)
		r.Get("/status", routes.getWorktreeStatus)
	})

	return r
}

// caller returns the authenticated identity, writing a 401 when there is none
func caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.OwnerID == "" {
		common.WriteErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return id, true
}

// repoRequest resolves the caller and the {name} path parameter
func repoRequest(w http.ResponseWriter, r *http.Request) (auth.Identity, string, bool) {
	id, ok := caller(w, r)
	if !ok {
		return auth.Identity{}, "", false
	}
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return auth.Identity{}, "", false
	}
	return id, name, true
}

func author(id auth.Identity) service.Author {
	return service.Author{Email: id.Email}
}
