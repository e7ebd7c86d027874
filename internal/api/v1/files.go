package v1

import (
	"net/http"

	"github.com/stacklok/gitrepo-server/internal/api/common"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// PullRequest is the body of POST /v1/repos/{name}/pull
type PullRequest struct {
	Branch string `json:"branch,omitempty"`
}

// getTree handles GET /v1/repos/{name}/tree
//
// @Summary		Get tree
// @Tags			files
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Param			branch	query		string	false	"Revision, defaults to HEAD"
// @Param			path	query		string	false	"Subdirectory"
// @Param			depth	query		int		false	"Levels to expand, 0 for all"
// @Success		200		{array}		git.FileEntry
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/tree [get]
func (rr *Routes) getTree(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	depth, err := common.QueryInt(r, "depth")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	entries, err := rr.service.GetTree(r.Context(), id.OwnerID, name, service.TreeOptions{
		Revision: query.Get("branch"),
		Path:     query.Get("path"),
		Depth:    depth,
	})
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, entries, http.StatusOK)
}

// getFile handles GET /v1/repos/{name}/files
//
// @Summary		Get file
// @Tags			files
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Param			branch	query		string	false	"Revision, defaults to HEAD"
// @Param			path	query		string	true	"File path"
// @Success		200		{object}	git.FileContent
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/files [get]
func (rr *Routes) getFile(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	content, err := rr.service.GetFile(r.Context(), id.OwnerID, name, query.Get("branch"), query.Get("path"))
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, content, http.StatusOK)
}

// updateFile handles PUT /v1/repos/{name}/files
//
// @Summary		Update file
// @Description	Write one file in the working tree and commit it
// @Tags			files
// @Accept			json
// @Produce		json
// @Param			name	path		string						true	"Repository name"
// @Param			request	body		service.UpdateFileRequest	true	"File and commit message"
// @Success		201		{object}	service.CommitResult
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/files [put]
func (rr *Routes) updateFile(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	var req service.UpdateFileRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Author = author(id)

	result, err := rr.service.UpdateFile(r.Context(), id.OwnerID, name, req)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, result, http.StatusCreated)
}

// pull handles POST /v1/repos/{name}/pull
//
// @Summary		Pull
// @Description	Fetch a branch from origin and move the local branch to it
// @Tags			files
// @Accept			json
// @Produce		json
// @Param			name	path		string		true	"Repository name"
// @Param			request	body		PullRequest	false	"Branch, defaults to the current one"
// @Success		200		{object}	git.PullResult
// @Failure		404		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/pull [post]
func (rr *Routes) pull(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	var req PullRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSONBody(w, r, &req); err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	result, err := rr.service.Pull(r.Context(), id.OwnerID, name, req.Branch)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, result, http.StatusOK)
}

// listBranches handles GET /v1/repos/{name}/branches
//
// @Summary		List branches
// @Tags			refs
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Success		200		{array}		git.BranchInfo
// @Router			/v1/repos/{name}/branches [get]
func (rr *Routes) listBranches(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	branches, err := rr.service.ListBranches(r.Context(), id.OwnerID, name)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, branches, http.StatusOK)
}

// listTags handles GET /v1/repos/{name}/tags
//
// @Summary		List tags
// @Tags			refs
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Success		200		{array}		git.TagInfo
// @Router			/v1/repos/{name}/tags [get]
func (rr *Routes) listTags(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	tags, err := rr.service.ListTags(r.Context(), id.OwnerID, name)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, tags, http.StatusOK)
}

// getWorktreeStatus handles GET /v1/repos/{name}/status
//
// @Summary		Working tree status
// @Tags			files
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Success		200		{array}		git.StatusEntry
// @Router			/v1/repos/{name}/status [get]
func (rr *Routes) getWorktreeStatus(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	entries, err := rr.service.GetWorktreeStatus(r.Context(), id.OwnerID, name)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, entries, http.StatusOK)
}
