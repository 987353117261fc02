package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
)

func testProfile() *entities.Profile {
	bio := "hello"
	birthday := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

	return &entities.Profile{
		UserID:   userID,
		Username: "alice",
		Image:    entities.DefaultProfileImage,
		Birthday: &birthday,
		Bio:      &bio,
		Location: "Minsk",
	}
}

const testProfileJSON = `{
	"user":{"id":"5d3b4fd4-1f43-4b0e-9d7a-6f7a3c0c1e01","username":"alice"},
	"image":"/media/blank.png",
	"birthday":"1990-05-17",
	"bio":"hello",
	"location":"Minsk"
}`

func TestServer_GetProfile(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().GetProfile(gomock.Any(), userID).Return(testProfile(), nil)

	w := e.request(http.MethodGet, "/api/profile", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, testProfileJSON, w.Body.String())
}

func TestServer_GetProfile_Blank(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().GetProfile(gomock.Any(), userID).Return(&entities.Profile{
		UserID:   userID,
		Username: "alice",
		Image:    entities.DefaultProfileImage,
	}, nil)

	w := e.request(http.MethodGet, "/api/profile", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"user":{"id":"5d3b4fd4-1f43-4b0e-9d7a-6f7a3c0c1e01","username":"alice"},
		"image":"/media/blank.png",
		"birthday":null,
		"bio":null,
		"location":""
	}`, w.Body.String())
}

func TestServer_UpdateProfile(t *testing.T) {
	bio := "hello"
	location := "Minsk"
	birthday := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

	tt := []struct {
		name string
		body string
		upd  *service.ProfileUpdate
		err  error

		rcode int
		rdata string
	}{
		{
			name: "success",
			body: `{"bio":"hello","location":"Minsk","birthday":"1990-05-17"}`,
			upd: &service.ProfileUpdate{
				Bio:      &bio,
				Location: &location,
				Birthday: &birthday,
			},
			rcode: http.StatusOK,
			rdata: testProfileJSON,
		},
		{
			name:  "partial",
			body:  `{"bio":"hello"}`,
			upd:   &service.ProfileUpdate{Bio: &bio},
			rcode: http.StatusOK,
			rdata: testProfileJSON,
		},
		{
			name:  "too long location",
			body:  `{"location":"` + strings.Repeat("a", 51) + `"}`,
			rcode: http.StatusBadRequest,
			rdata: `{"error":"validation failed","fields":{"location":"ensure this field has no more than 50 characters"}}`,
		},
		{
			name:  "wrong birthday",
			body:  `{"birthday":"17.05.1990"}`,
			rcode: http.StatusBadRequest,
			rdata: `{"error":"validation failed","fields":{"birthday":"date has wrong format, use 2006-01-02"}}`,
		},
		{
			name:  "internal error",
			body:  `{"bio":"hello"}`,
			upd:   &service.ProfileUpdate{Bio: &bio},
			err:   errors.New("test"),
			rcode: http.StatusInternalServerError,
			rdata: `{"error":"internal error"}`,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)

			if tc.upd != nil {
				var p *entities.Profile
				if tc.err == nil {
					p = testProfile()
				}

				e.s.EXPECT().UpdateProfile(gomock.Any(), userID, tc.upd).Return(p, tc.err)
			}

			w := e.request(http.MethodPut, "/api/profile", strings.NewReader(tc.body), "application/json")

			assert.Equal(t, tc.rcode, w.Code)
			assert.JSONEq(t, tc.rdata, w.Body.String())
		})
	}
}

func TestServer_UpdateProfileImage(t *testing.T) {
	e := newTestEnv(t)

	oldKey := profileImagesPrefix + "old.png"
	require.NoError(t, os.MkdirAll(filepath.Join(e.blobDir, "profile_images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.blobDir, oldKey), pngImage, 0o600))

	old := testProfile()
	old.Image = oldKey

	var key string
	gomock.InOrder(
		e.s.EXPECT().GetProfile(gomock.Any(), userID).Return(old, nil),
		e.s.EXPECT().UpdateProfile(gomock.Any(), userID, gomock.Any()).
			DoAndReturn(func(_ interface{}, _ uuid.UUID, upd *service.ProfileUpdate) (*entities.Profile, error) {
				require.NotNil(t, upd.Image)
				require.Nil(t, upd.Bio)
				key = *upd.Image

				p := testProfile()
				p.Image = key
				return p, nil
			}),
	)

	body, ct := multipartBody(t, nil, pngImage)

	w := e.request(http.MethodPut, "/api/profile/image", body, ct)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, strings.HasPrefix(key, profileImagesPrefix), key)

	_, err := os.Stat(filepath.Join(e.blobDir, key))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(e.blobDir, oldKey))
	assert.True(t, os.IsNotExist(err), "previous image should be removed")
}

func TestServer_UpdateProfileImage_InvalidImage(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().GetProfile(gomock.Any(), userID).Return(testProfile(), nil)

	body, ct := multipartBody(t, nil, []byte("GIF"))

	w := e.request(http.MethodPut, "/api/profile/image", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"validation failed","fields":{"image":"upload a valid image"}}`, w.Body.String())
}

func TestServer_GetUser(t *testing.T) {
	e := newTestEnv(t)

	bob := uuid.MustParse("2b1f6c1d-8c57-4d0b-a4f2-0c4fd2f1b9e3")

	p := testPost()
	p.UserID = bob
	p.Username = "bob"

	e.s.EXPECT().GetUserView(gomock.Any(), userID, "bob").Return(&service.UserView{
		Profile: &entities.Profile{
			UserID:   bob,
			Username: "bob",
			Image:    entities.DefaultProfileImage,
		},
		Posts: []*entities.Post{p},
		Stats: entities.FollowStats{
			Followers: 3,
			Following: 1,
		},
		Following: true,
	}, nil)
	e.s.EXPECT().GetLiked(gomock.Any(), userID, postID).Return(map[uuid.UUID]bool{}, nil)

	w := e.request(http.MethodGet, "/api/users/bob", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"profile":{
			"user":{"id":"2b1f6c1d-8c57-4d0b-a4f2-0c4fd2f1b9e3","username":"bob"},
			"image":"/media/blank.png",
			"birthday":null,
			"bio":null,
			"location":""
		},
		"posts_count":1,
		"followers":3,
		"following":1,
		"is_following":true,
		"posts":[{
			"id":"0b6e2a4b-3f51-4cf5-9d7c-cc3e0ba4b2a1",
			"user":{"id":"2b1f6c1d-8c57-4d0b-a4f2-0c4fd2f1b9e3","username":"bob"},
			"image":"/media/post_images/1.png",
			"caption":"sunset",
			"created_at":"2021-01-02T03:04:05Z",
			"like_count":2,
			"liked":false
		}]
	}`, w.Body.String())
}

func TestServer_GetUser_NotFound(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().GetUserView(gomock.Any(), userID, "nobody").Return(nil, service.ErrNotFound)

	w := e.request(http.MethodGet, "/api/users/nobody", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestServer_ToggleFollow(t *testing.T) {
	tt := []struct {
		name string
		body string
		user string
		res  *service.FollowResult
		err  error

		rcode int
		rdata string
	}{
		{
			name:  "follow",
			body:  `{"user":"bob"}`,
			user:  "bob",
			res:   &service.FollowResult{Following: true, Followers: 4},
			rcode: http.StatusOK,
			rdata: `{"following":true,"followers":4}`,
		},
		{
			name:  "unfollow",
			body:  `{"user":"bob"}`,
			user:  "bob",
			res:   &service.FollowResult{Following: false, Followers: 3},
			rcode: http.StatusOK,
			rdata: `{"following":false,"followers":3}`,
		},
		{
			name:  "self",
			body:  `{"user":"alice"}`,
			user:  "alice",
			err:   service.ErrSelfFollow,
			rcode: http.StatusBadRequest,
			rdata: `{"error":"can not follow yourself"}`,
		},
		{
			name:  "unknown user",
			body:  `{"user":"nobody"}`,
			user:  "nobody",
			err:   service.ErrNotFound,
			rcode: http.StatusNotFound,
			rdata: `{"error":"not found"}`,
		},
		{
			name:  "missing user",
			body:  `{}`,
			rcode: http.StatusBadRequest,
			rdata: `{"error":"validation failed","fields":{"user":"this field is required"}}`,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)

			if tc.user != "" {
				e.s.EXPECT().ToggleFollow(gomock.Any(), userID, tc.user).Return(tc.res, tc.err)
			}

			w := e.request(http.MethodPost, "/api/follow", strings.NewReader(tc.body), "application/json")

			assert.Equal(t, tc.rcode, w.Code)
			assert.JSONEq(t, tc.rdata, w.Body.String())
		})
	}
}
