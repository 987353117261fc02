package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/Decentr-net/tribune/internal/api"
	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
)

func (s server) getProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /profile Profiles GetProfile
	//
	// Returns caller's profile. A blank profile is created on the first request.
	//
	// ---
	// produces:
	// - application/json
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"

	p, err := s.s.GetProfile(r.Context(), identity(r).UserID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get profile")
		return
	}

	api.WriteOK(w, http.StatusOK, s.toProfileDTO(p))
}

func (s server) updateProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /profile Profiles UpdateProfile
	//
	// Updates caller's profile. Omitted fields keep their values.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/UpdateProfileRequest"
	// responses:
	//   '200':
	//     description: Updated profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/ValidationError"

	var req UpdateProfileRequest
	if !s.decode(w, r, &req) {
		return
	}

	upd := service.ProfileUpdate{
		Bio:      req.Bio,
		Location: req.Location,
	}

	if req.Birthday != nil && *req.Birthday != "" {
		// format is checked by the validator
		t, _ := time.Parse(dateLayout, *req.Birthday)
		upd.Birthday = &t
	}

	p, err := s.s.UpdateProfile(r.Context(), identity(r).UserID, &upd)
	if err != nil {
		writeServiceError(w, r, err, "failed to update profile")
		return
	}

	api.WriteOK(w, http.StatusOK, s.toProfileDTO(p))
}

func (s server) updateProfileImage(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	old, err := s.s.GetProfile(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get profile")
		return
	}

	key, err := s.uploadImage(r, profileImagesPrefix)
	if err != nil {
		writeUploadError(w, r, err)
		return
	}

	p, err := s.s.UpdateProfile(r.Context(), id.UserID, &service.ProfileUpdate{Image: &key})
	if err != nil {
		s.dropImage(r.Context(), key)
		writeServiceError(w, r, err, "failed to update profile")
		return
	}

	if old.Image != entities.DefaultProfileImage && old.Image != key {
		s.dropImage(r.Context(), old.Image)
	}

	api.WriteOK(w, http.StatusOK, s.toProfileDTO(p))
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{username} Profiles GetUser
	//
	// Returns user's public page.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: username
	//   in: path
	//   required: true
	// responses:
	//   '200':
	//     description: User's page
	//     schema:
	//       "$ref": "#/definitions/UserResponse"
	//   '404':
	//     description: user not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	caller := identity(r).UserID

	v, err := s.s.GetUserView(r.Context(), caller, chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, err, "failed to get user")
		return
	}

	liked, err := s.s.GetLiked(r.Context(), caller, extractPostIDs(v.Posts)...)
	if err != nil {
		writeServiceError(w, r, err, "failed to get liked posts")
		return
	}

	api.WriteOK(w, http.StatusOK, UserResponse{
		Profile:     s.toProfileDTO(v.Profile),
		PostsCount:  len(v.Posts),
		Followers:   v.Stats.Followers,
		Following:   v.Stats.Following,
		IsFollowing: v.Following,
		Posts:       s.toPostsDTO(v.Posts, liked),
	})
}

func (s server) toggleFollow(w http.ResponseWriter, r *http.Request) {
	var req FollowRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.s.ToggleFollow(r.Context(), identity(r).UserID, req.User)
	if err != nil {
		writeServiceError(w, r, err, "failed to toggle follow")
		return
	}

	api.WriteOK(w, http.StatusOK, FollowResponse{
		Following: res.Following,
		Followers: res.Followers,
	})
}
