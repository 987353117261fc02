package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/api"
	"github.com/Decentr-net/tribune/internal/entities"
)

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts Posts ListPosts
	//
	// Returns all posts, newest first.
	//
	// ---
	// produces:
	// - application/json
	// responses:
	//   '200':
	//     description: Posts
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Post"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	pp, err := s.s.ListPosts(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list posts")
		return
	}

	ids := extractPostIDs(pp)
	liked, err := s.s.GetLiked(r.Context(), identity(r).UserID, ids...)
	if err != nil {
		writeServiceError(w, r, err, "failed to get liked posts")
		return
	}

	api.WriteOK(w, http.StatusOK, s.toPostsDTO(pp, liked))
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDFromPath(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.s.GetPost(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get post")
		return
	}

	liked, err := s.s.GetLiked(r.Context(), identity(r).UserID, p.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get liked posts")
		return
	}

	api.WriteOK(w, http.StatusOK, s.toPostDTO(p, liked[p.ID]))
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts Posts CreatePost
	//
	// Creates a post owned by the caller.
	//
	// ---
	// consumes:
	// - multipart/form-data
	// produces:
	// - application/json
	// parameters:
	// - name: image
	//   in: formData
	//   type: file
	//   required: true
	// - name: caption
	//   in: formData
	//   type: string
	// responses:
	//   '201':
	//     description: Created post
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/ValidationError"

	key, err := s.uploadImage(r, postImagesPrefix)
	if err != nil {
		writeUploadError(w, r, err)
		return
	}

	p, err := s.s.CreatePost(r.Context(), identity(r).UserID, key, r.FormValue("caption"))
	if err != nil {
		s.dropImage(r.Context(), key)
		writeServiceError(w, r, err, "failed to create post")
		return
	}

	api.WriteOK(w, http.StatusCreated, s.toPostDTO(p, false))
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var uerr uploadError
	if errors.As(err, &uerr) {
		writeValidationError(w, map[string]string{imageField: uerr.msg})
		return
	}

	api.WriteInternalErrorf(r.Context(), w, "failed to upload image: %s", err.Error())
}

func extractPostIDs(pp []*entities.Post) []uuid.UUID {
	out := make([]uuid.UUID, len(pp))
	for i, v := range pp {
		out[i] = v.ID
	}

	return out
}
