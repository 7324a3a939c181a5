package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/UnendingLoop/ImageVariations/internal/mwauth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *ImageHandler) *gin.Engine {
	r := gin.New()
	r.GET("/ping", func(c *gin.Context) { h.SimplePinger((*ginext.Context)(c)) })
	r.GET("/user", func(c *gin.Context) { h.User((*ginext.Context)(c)) })
	r.POST("/upload-image", func(c *gin.Context) { h.Upload((*ginext.Context)(c)) })
	r.GET("/generate-variations/:id", func(c *gin.Context) { h.GenerateVariations((*ginext.Context)(c)) })
	r.GET("/user-images", func(c *gin.Context) { h.UserImages((*ginext.Context)(c)) })
	return r
}

func authorize(req *http.Request, user model.User) *http.Request {
	return req.WithContext(mwauth.ContextWithUser(req.Context(), user))
}

func multipartImage(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

func TestSimplePinger(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestUser_OK(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/user", nil), model.User{ID: 7, Name: "user-7"})
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var got model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, int64(7), got.ID)
}

func TestUser_Unauthorized(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/user", nil))

	require.Equal(t, 401, w.Code)
}

func TestUpload_OK(t *testing.T) {
	svc := &mockService{
		uploadFn: func(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error) {
			require.Equal(t, int64(7), user.ID)
			require.Equal(t, "cat.png", data.Filename)
			return &model.Image{ID: 42, Filename: "cat.png", UserID: 7, URL: "http://minio/images/cat.png"}, nil
		},
	}
	router := newRouter(NewImageHandler(svc))

	body, ct := multipartImage(t, "image", "cat.png", []byte("png-bytes"))
	req := authorize(httptest.NewRequest("POST", "/upload-image", body), model.User{ID: 7})
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 201, w.Code)

	var resp struct {
		Image model.Image `json:"image"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(42), resp.Image.ID)
}

func TestUpload_NoFile(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	req := authorize(httptest.NewRequest("POST", "/upload-image", nil), model.User{ID: 7})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
	require.Contains(t, w.Body.String(), "Image upload failed.")
}

func TestUpload_ValidationError(t *testing.T) {
	svc := &mockService{
		uploadFn: func(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error) {
			return nil, model.ErrImageTooLarge
		},
	}
	router := newRouter(NewImageHandler(svc))

	body, ct := multipartImage(t, "image", "huge.png", []byte("png-bytes"))
	req := authorize(httptest.NewRequest("POST", "/upload-image", body), model.User{ID: 7})
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
	require.Contains(t, w.Body.String(), model.ErrImageTooLarge.Error())
}

func TestUpload_Unauthorized(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/upload-image", nil))

	require.Equal(t, 401, w.Code)
}

func TestGenerateVariations_OK(t *testing.T) {
	svc := &mockService{
		generateVariationsFn: func(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error) {
			require.Equal(t, int64(1), imageID)
			require.Equal(t, int64(7), userID)
			return &model.VariationResult{Success: true, Variations: []string{"http://minio/images/generated/a.png"}}, nil
		},
	}
	router := newRouter(NewImageHandler(svc))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/generate-variations/1", nil), model.User{ID: 7})
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var res model.VariationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.Len(t, res.Variations, 1)
}

func TestGenerateVariations_BadID(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/generate-variations/abc", nil), model.User{ID: 7})
	router.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
	require.Contains(t, w.Body.String(), model.ErrIncorrectID.Error())
}

func TestGenerateVariations_NotFound(t *testing.T) {
	svc := &mockService{
		generateVariationsFn: func(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error) {
			return nil, model.ErrImageNotFound
		},
	}
	router := newRouter(NewImageHandler(svc))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/generate-variations/404", nil), model.User{ID: 7})
	router.ServeHTTP(w, req)

	require.Equal(t, 404, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
}

func TestGenerateVariations_InternalError(t *testing.T) {
	svc := &mockService{
		generateVariationsFn: func(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error) {
			return nil, model.ErrCommon500
		},
	}
	router := newRouter(NewImageHandler(svc))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/generate-variations/1", nil), model.User{ID: 7})
	router.ServeHTTP(w, req)

	require.Equal(t, 500, w.Code)
}

func TestUserImages_OK(t *testing.T) {
	svc := &mockService{
		listUserImagesFn: func(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
			require.Equal(t, int64(7), userID)
			require.Equal(t, 2, req.Page)
			require.Equal(t, 10, req.Limit)
			return []model.ImageSummary{{ID: 1, Filename: "a.png", URL: "u"}}, nil
		},
	}
	router := newRouter(NewImageHandler(svc))

	w := httptest.NewRecorder()
	req := authorize(httptest.NewRequest("GET", "/user-images?page=2&limit=10", nil), model.User{ID: 7})
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var resp struct {
		Images []model.ImageSummary `json:"images"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 1)
}

func TestUserImages_Unauthorized(t *testing.T) {
	router := newRouter(NewImageHandler(&mockService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/user-images", nil))

	require.Equal(t, 401, w.Code)
}
