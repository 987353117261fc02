package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/api"
)

func (s server) toggleLike(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /like Likes ToggleLike
	//
	// Likes the post if the caller does not like it yet and removes the like otherwise.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: post_id
	//   in: query
	//   required: true
	//   example: 0b6e2a4b-3f51-4cf5-9d7c-cc3e0ba4b2a1
	// responses:
	//   '200':
	//     description: New count of post's likes
	//     schema:
	//       "$ref": "#/definitions/LikesResponse"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     description: unauthorized
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '409':
	//     description: too many concurrent toggles
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	raw := r.URL.Query().Get("post_id")
	if raw == "" {
		api.WriteError(w, http.StatusBadRequest, "post_id is required")
		return
	}

	postID, err := uuid.Parse(raw)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid post_id")
		return
	}

	likes, err := s.s.ToggleLike(r.Context(), identity(r).UserID, postID)
	if err != nil {
		writeServiceError(w, r, err, "failed to toggle like")
		return
	}

	api.WriteOK(w, http.StatusOK, LikesResponse{Likes: likes})
}
