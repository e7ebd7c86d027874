package v1

import (
	"net/http"

	"github.com/stacklok/gitrepo-server/internal/api/common"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// RenameRequest is the body of POST /v1/repos/{name}/rename
type RenameRequest struct {
	NewName string `json:"newName"`
}

// RenameResponse reports the new repository name
type RenameResponse struct {
	Name string `json:"name"`
}

// listRepositories handles GET /v1/repos
//
// @Summary		List repositories
// @Description	List the repositories of the caller with their checked out branch
// @Tags			repositories
// @Produce		json
// @Success		200	{array}		service.RepositorySummary
// @Failure		401	{object}	common.ErrorResponse
// @Router			/v1/repos [get]
func (rr *Routes) listRepositories(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	repos, err := rr.service.ListRepositories(r.Context(), id.OwnerID)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, repos, http.StatusOK)
}

// initRepository handles POST /v1/repos
//
// @Summary		Create repository
// @Description	Create an empty repository with an unborn default branch
// @Tags			repositories
// @Accept			json
// @Produce		json
// @Param			request	body		service.InitRequest	true	"Repository to create"
// @Success		201		{object}	service.RepositorySummary
// @Failure		400		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Router			/v1/repos [post]
func (rr *Routes) initRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req service.InitRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	repo, err := rr.service.InitRepository(r.Context(), id.OwnerID, req)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, repo, http.StatusCreated)
}

// cloneRepository handles POST /v1/repos/clone
//
// @Summary		Clone repository
// @Description	Start a background clone. Completion is announced on the websocket channel.
// @Tags			repositories
// @Accept			json
// @Produce		json
// @Param			request	body		service.CloneRequest	true	"Remote and target name"
// @Success		202		{object}	clone.Job
// @Failure		400		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Router			/v1/repos/clone [post]
func (rr *Routes) cloneRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req service.CloneRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := rr.service.CloneRepository(r.Context(), id.OwnerID, req)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, job, http.StatusAccepted)
}

// getCloneStatus handles GET /v1/repos/{name}/clone-status
//
// @Summary		Clone status
// @Tags			repositories
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Success		200		{object}	clone.Job
// @Failure		400		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/clone-status [get]
func (rr *Routes) getCloneStatus(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	job, err := rr.service.GetCloneStatus(r.Context(), id.OwnerID, name)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, job, http.StatusOK)
}

// deleteRepository handles DELETE /v1/repos/{name}
//
// @Summary		Delete repository
// @Tags			repositories
// @Param			name	path	string	true	"Repository name"
// @Success		204
// @Failure		409	{object}	common.ErrorResponse
// @Router			/v1/repos/{name} [delete]
func (rr *Routes) deleteRepository(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	if err := rr.service.DeleteRepository(r.Context(), id.OwnerID, name); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renameRepository handles POST /v1/repos/{name}/rename
//
// @Summary		Rename repository
// @Tags			repositories
// @Accept			json
// @Produce		json
// @Param			name	path		string			true	"Repository name"
// @Param			request	body		RenameRequest	true	"New name"
// @Success		200		{object}	RenameResponse
// @Failure		404		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/rename [post]
func (rr *Routes) renameRepository(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	var req RenameRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.service.RenameRepository(r.Context(), id.OwnerID, name, req.NewName); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RenameResponse{Name: req.NewName}, http.StatusOK)
}
