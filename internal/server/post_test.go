package server

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
)

// nolint:gochecknoglobals
var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// multipartBody builds multipart form with the fields and an optional image file.
func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	return multipartFile(t, fields, "image.png", image)
}

func multipartFile(t *testing.T, fields map[string]string, filename string, image []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if image != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	return &b, mw.FormDataContentType()
}

func testPost() *entities.Post {
	return &entities.Post{
		ID:        postID,
		UserID:    userID,
		Username:  "alice",
		Image:     "post_images/1.png",
		Caption:   "sunset",
		CreatedAt: createdAt,
		LikeCount: 2,
	}
}

const testPostJSON = `{
	"id":"0b6e2a4b-3f51-4cf5-9d7c-cc3e0ba4b2a1",
	"user":{"id":"5d3b4fd4-1f43-4b0e-9d7a-6f7a3c0c1e01","username":"alice"},
	"image":"/media/post_images/1.png",
	"caption":"sunset",
	"created_at":"2021-01-02T03:04:05Z",
	"like_count":2,
	"liked":%s
}`

func TestServer_ListPosts(t *testing.T) {
	e := newTestEnv(t)

	other := testPost()
	other.ID = uuid.MustParse("c8b5a8c2-9a43-4f7d-8f3e-1d0c2b3a4f55")

	e.s.EXPECT().ListPosts(gomock.Any()).Return([]*entities.Post{testPost(), other}, nil)
	e.s.EXPECT().GetLiked(gomock.Any(), userID, postID, other.ID).Return(map[uuid.UUID]bool{postID: true}, nil)

	w := e.request(http.MethodGet, "/api/posts", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[`+
		fmt.Sprintf(testPostJSON, "true")+`,`+
		strings.Replace(fmt.Sprintf(testPostJSON, "false"),
			postID.String(), other.ID.String(), 1)+
		`]`, w.Body.String())
}

func TestServer_ListPosts_Empty(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().ListPosts(gomock.Any()).Return(nil, nil)
	e.s.EXPECT().GetLiked(gomock.Any(), userID).Return(map[uuid.UUID]bool{}, nil)

	w := e.request(http.MethodGet, "/api/posts", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_ListPosts_Error(t *testing.T) {
	e := newTestEnv(t)

	e.s.EXPECT().ListPosts(gomock.Any()).Return(nil, errors.New("test"))

	w := e.request(http.MethodGet, "/api/posts", nil, "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestServer_GetPost(t *testing.T) {
	tt := []struct {
		name   string
		target string
		call   bool
		err    error

		rcode int
		rdata string
	}{
		{
			name:   "success",
			target: "/api/posts/" + postID.String(),
			call:   true,
			rcode:  http.StatusOK,
			rdata:  fmt.Sprintf(testPostJSON, "true"),
		},
		{
			name:   "not found",
			target: "/api/posts/" + postID.String(),
			call:   true,
			err:    service.ErrNotFound,
			rcode:  http.StatusNotFound,
			rdata:  `{"error":"not found"}`,
		},
		{
			name:   "malformed post_id",
			target: "/api/posts/abc",
			rcode:  http.StatusBadRequest,
			rdata:  `{"error":"invalid request: invalid post_id"}`,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)

			if tc.call {
				if tc.err != nil {
					e.s.EXPECT().GetPost(gomock.Any(), postID).Return(nil, tc.err)
				} else {
					e.s.EXPECT().GetPost(gomock.Any(), postID).Return(testPost(), nil)
					e.s.EXPECT().GetLiked(gomock.Any(), userID, postID).Return(map[uuid.UUID]bool{postID: true}, nil)
				}
			}

			w := e.request(http.MethodGet, tc.target, nil, "")

			assert.Equal(t, tc.rcode, w.Code)
			assert.JSONEq(t, tc.rdata, w.Body.String())
		})
	}
}

func TestServer_CreatePost(t *testing.T) {
	e := newTestEnv(t)

	var key string
	e.s.EXPECT().CreatePost(gomock.Any(), userID, gomock.Any(), "sunset").
		DoAndReturn(func(_ interface{}, _ uuid.UUID, image, _ string) (*entities.Post, error) {
			key = image

			p := testPost()
			p.Image = image
			p.LikeCount = 0
			return p, nil
		})

	// user field must be ignored, post is always owned by the caller
	body, ct := multipartBody(t, map[string]string{
		"caption": "sunset",
		"user":    "7f5c1a3e-0000-4000-8000-000000000000",
	}, pngImage)

	w := e.request(http.MethodPost, "/api/posts", body, ct)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, strings.HasPrefix(key, postImagesPrefix), key)
	assert.Equal(t, ".png", filepath.Ext(key))

	b, err := os.ReadFile(filepath.Join(e.blobDir, key))
	require.NoError(t, err)
	assert.Equal(t, pngImage, b)

	assert.JSONEq(t, `{
		"id":"0b6e2a4b-3f51-4cf5-9d7c-cc3e0ba4b2a1",
		"user":{"id":"5d3b4fd4-1f43-4b0e-9d7a-6f7a3c0c1e01","username":"alice"},
		"image":"/media/`+key+`",
		"caption":"sunset",
		"created_at":"2021-01-02T03:04:05Z",
		"like_count":0,
		"liked":false
	}`, w.Body.String())
}

func TestServer_CreatePost_ServiceError(t *testing.T) {
	e := newTestEnv(t)

	var key string
	e.s.EXPECT().CreatePost(gomock.Any(), userID, gomock.Any(), "").
		DoAndReturn(func(_ interface{}, _ uuid.UUID, image, _ string) (*entities.Post, error) {
			key = image
			return nil, errors.New("test")
		})

	body, ct := multipartBody(t, nil, pngImage)

	w := e.request(http.MethodPost, "/api/posts", body, ct)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	_, err := os.Stat(filepath.Join(e.blobDir, key))
	assert.True(t, os.IsNotExist(err), "uploaded image should be removed")
}

func TestServer_CreatePost_InvalidImage(t *testing.T) {
	tt := []struct {
		name     string
		filename string
		image    []byte
		rdata    string
	}{
		{
			name:     "no image",
			filename: "image.png",
			rdata:    `{"error":"validation failed","fields":{"image":"no file was submitted"}}`,
		},
		{
			name:     "not an image",
			filename: "image.png",
			image:    []byte("just a text file"),
			rdata:    `{"error":"validation failed","fields":{"image":"upload a valid image"}}`,
		},
		{
			name:     "html behind icon header",
			filename: "page.html",
			image:    []byte("\x00\x00\x01\x00<html><script>alert(1)</script></html>"),
			rdata:    `{"error":"validation failed","fields":{"image":"upload a valid image"}}`,
		},
		{
			name:     "png with html name",
			filename: "page.html",
			image:    []byte("\x89PNG\r\n\x1a\n<html><script>alert(1)</script></html>"),
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)

			body, ct := multipartFile(t, map[string]string{"caption": "sunset"}, tc.filename, tc.image)

			if tc.rdata == "" {
				e.s.EXPECT().CreatePost(gomock.Any(), userID, gomock.Any(), "sunset").
					DoAndReturn(func(_ interface{}, _ uuid.UUID, image, _ string) (*entities.Post, error) {
						// extension follows the content, never the client's file name
						assert.Equal(t, ".png", filepath.Ext(image))

						p := testPost()
						p.Image = image
						return p, nil
					})

				w := e.request(http.MethodPost, "/api/posts", body, ct)
				assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
				return
			}

			w := e.request(http.MethodPost, "/api/posts", body, ct)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, tc.rdata, w.Body.String())

			entries, err := os.ReadDir(e.blobDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestServer_CreatePost_NotMultipart(t *testing.T) {
	e := newTestEnv(t)

	w := e.request(http.MethodPost, "/api/posts", strings.NewReader(`{"caption":"sunset"}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"validation failed","fields":{"image":"invalid multipart form"}}`, w.Body.String())
}

func TestServer_CreatePost_RemovesMultipartFiles(t *testing.T) {
	e := newTestEnv(t)

	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	e.s.EXPECT().CreatePost(gomock.Any(), userID, gomock.Any(), "").Return(testPost(), nil)

	// files above the in-memory limit of the form parser are spooled to TMPDIR
	image := append(append([]byte{}, pngImage...), make([]byte, 2<<20)...)
	body, ct := multipartBody(t, nil, image)

	w := e.request(http.MethodPost, "/api/posts", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
