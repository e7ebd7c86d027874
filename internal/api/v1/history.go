package v1

import (
	"net/http"

	"github.com/stacklok/gitrepo-server/internal/api/common"
	"github.com/stacklok/gitrepo-server/internal/service"
)

// CountResponse is the body of GET /v1/repos/{name}/commits/count
type CountResponse struct {
	Count int `json:"count"`
}

// listCommits handles GET /v1/repos/{name}/commits
//
// @Summary		List commits
// @Description	One page of the history reachable from a branch, newest first
// @Tags			history
// @Produce		json
// @Param			name		path		string	true	"Repository name"
// @Param			branch		query		string	false	"Branch, defaults to HEAD"
// @Param			page		query		int		false	"1-based page"
// @Param			page_size	query		int		false	"Items per page"
// @Success		200			{object}	git.CommitPage
// @Failure		400			{object}	common.ErrorResponse
// @Failure		404			{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/commits [get]
func (rr *Routes) listCommits(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	page, err := common.QueryInt(r, "page")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	pageSize, err := common.QueryInt(r, "page_size")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := rr.service.ListCommits(r.Context(), id.OwnerID, name, service.ListCommitsOptions{
		Branch:   r.URL.Query().Get("branch"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, result, http.StatusOK)
}

// countCommits handles GET /v1/repos/{name}/commits/count
//
// @Summary		Count commits
// @Tags			history
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Param			branch	query		string	false	"Branch, defaults to HEAD"
// @Success		200		{object}	CountResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/commits/count [get]
func (rr *Routes) countCommits(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	count, err := rr.service.CountCommits(r.Context(), id.OwnerID, name, r.URL.Query().Get("branch"))
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, CountResponse{Count: count}, http.StatusOK)
}

// getCommit handles GET /v1/repos/{name}/commits/{id}
//
// @Summary		Get commit
// @Description	A commit with its changes against the first parent
// @Tags			history
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Param			id		path		string	true	"Commit id or revision"
// @Success		200		{object}	git.CommitDetail
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/commits/{id} [get]
func (rr *Routes) getCommit(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}
	commitID, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	detail, err := rr.service.GetCommit(r.Context(), id.OwnerID, name, commitID)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, detail, http.StatusOK)
}

// compare handles GET /v1/repos/{name}/compare
//
// @Summary		Compare revisions
// @Tags			history
// @Produce		json
// @Param			name	path		string	true	"Repository name"
// @Param			from	query		string	true	"Base revision"
// @Param			to		query		string	true	"Target revision"
// @Success		200		{array}		git.FileChange
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/compare [get]
func (rr *Routes) compare(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	changes, err := rr.service.Compare(r.Context(), id.OwnerID, name, query.Get("from"), query.Get("to"))
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, changes, http.StatusOK)
}

// createCommit handles POST /v1/repos/{name}/commits
//
// @Summary		Create commit
// @Description	Stage the given paths, or every change when all is set, and commit
// @Tags			history
// @Accept			json
// @Produce		json
// @Param			name	path		string					true	"Repository name"
// @Param			request	body		service.CommitRequest	true	"Commit"
// @Success		201		{object}	service.CommitResult
// @Failure		400		{object}	common.ErrorResponse
// @Router			/v1/repos/{name}/commits [post]
func (rr *Routes) createCommit(w http.ResponseWriter, r *http.Request) {
	id, name, ok := repoRequest(w, r)
	if !ok {
		return
	}

	var req service.CommitRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Author = author(id)

	result, err := rr.service.CreateCommit(r.Context(), id.OwnerID, name, req)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, result, http.StatusCreated)
}
