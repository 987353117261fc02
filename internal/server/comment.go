package server

import (
	"net/http"
	"strings"

	"github.com/Decentr-net/tribune/internal/api"
)

const noCommentsMessage = "no comments yet"

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{post_id}/comments Comments ListComments
	//
	// Returns post's comments, oldest first.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: post_id
	//   in: path
	//   required: true
	// responses:
	//   '200':
	//     description: Comments
	//     schema:
	//       "$ref": "#/definitions/ListCommentsResponse"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	postID, err := postIDFromPath(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cc, err := s.s.ListComments(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list comments")
		return
	}

	resp := ListCommentsResponse{
		Comments: make([]Comment, len(cc)),
	}
	for i, v := range cc {
		resp.Comments[i] = toCommentDTO(v)
	}
	if len(cc) == 0 {
		resp.Message = noCommentsMessage
	}

	api.WriteOK(w, http.StatusOK, resp)
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts/{post_id}/comments Comments CreateComment
	//
	// Comments the post on behalf of the caller.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: post_id
	//   in: path
	//   required: true
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreateCommentRequest"
	// responses:
	//   '201':
	//     description: Created comment
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/ValidationError"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	postID, err := postIDFromPath(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CreateCommentRequest
	if err := jsonDecode(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)

	if !s.validate(w, &req) {
		return
	}

	c, err := s.s.CreateComment(r.Context(), identity(r).UserID, postID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to create comment")
		return
	}

	api.WriteOK(w, http.StatusCreated, toCommentDTO(c))
}
