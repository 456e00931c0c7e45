package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"deptportal/internal/category"
	"deptportal/internal/http/middleware"
	"deptportal/internal/model"
	"deptportal/internal/service"
	serviceMocks "deptportal/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// withSession injects a session the way middleware.SessionAuth would.
func withSession(s *middleware.Session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s != nil {
			c.Locals(middleware.SessionLocalKey, *s)
		}
		return c.Next()
	}
}

type part struct {
	field, filename, contentType string
	content                      []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, r io.Reader) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(r).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadFile(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%test\n")
	receipt := &model.Receipt{
		ID:           uuid.New().String(),
		Category:     "ResearchPaper",
		OwnerID:      "F01",
		RelativePath: "Faculty/ResearchPapers/F01/paper_1700000000123.pdf",
		URL:          "/public/Faculty/ResearchPapers/F01/paper_1700000000123.pdf",
	}

	newApp := func(svc service.UploadService, s *middleware.Session) *fiber.App {
		app := fiber.New()
		app.Post("/api/uploads/:category/:ownerId?", withSession(s), UploadFile(svc))
		return app
	}

	t.Run("success with route owner", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		mockSvc.On("AcceptAndStore", mock.Anything, mock.MatchedBy(func(r model.UploadRequest) bool {
			b, _ := io.ReadAll(r.File.Reader)
			return r.Category == "ResearchPaper" &&
				r.Owner.Route == "F01" &&
				r.File.OriginalName == "paper.pdf" &&
				r.File.MimeType == "application/pdf" &&
				r.File.SizeBytes == int64(len(pdf)) &&
				bytes.Equal(b, pdf)
		})).Return(receipt, nil).Once()

		body, ct := multipartBody(t, nil, part{"researchPaper", "paper.pdf", "application/pdf", pdf})
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/research-paper/F01", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(mockSvc, nil).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got model.Receipt
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, receipt.ID, got.ID)
		assert.Equal(t, receipt.URL, got.URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("fallback field and extension mime", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		mockSvc.On("AcceptAndStore", mock.Anything, mock.MatchedBy(func(r model.UploadRequest) bool {
			return r.File.MimeType == "application/pdf" && r.Owner.Body == "F02" && r.Owner.Query == "F03"
		})).Return(receipt, nil).Once()

		body, ct := multipartBody(t, map[string]string{"facultyId": "F02"}, part{"file", "paper.PDF", "", pdf})
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/ResearchPaper?facultyId=F03", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(mockSvc, nil).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("session owner only for matching role", func(t *testing.T) {
		for _, tc := range []struct {
			role string
			want string
		}{
			{role: "faculty", want: "F09"},
			{role: "student", want: ""},
		} {
			mockSvc := new(serviceMocks.MockUploadService)
			mockSvc.On("AcceptAndStore", mock.Anything, mock.MatchedBy(func(r model.UploadRequest) bool {
				return r.Owner.Session == tc.want
			})).Return(receipt, nil).Once()

			body, ct := multipartBody(t, nil, part{"researchPaper", "paper.pdf", "application/pdf", pdf})
			req := httptest.NewRequest(http.MethodPost, "/api/uploads/research-paper", body)
			req.Header.Set("Content-Type", ct)
			resp, err := newApp(mockSvc, &middleware.Session{OwnerID: "F09", Role: tc.role}).Test(req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusCreated, resp.StatusCode, tc.role)
			mockSvc.AssertExpectations(t)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		body, ct := multipartBody(t, nil, part{"file", "x.pdf", "application/pdf", pdf})
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/thesis/F01", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(mockSvc, nil).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "UNKNOWN_CATEGORY", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertNotCalled(t, "AcceptAndStore", mock.Anything, mock.Anything)
	})

	t.Run("no file", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		body, ct := multipartBody(t, map[string]string{"facultyId": "F01"})
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/image", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(mockSvc, nil).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("failures map to status codes", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
			wantMsg    string
		}{
			{"missing owner", &service.Failure{Kind: service.KindMissingOwnerIdentifier}, http.StatusBadRequest, "MISSING_OWNER_ID", "owner identifier is required"},
			{"media type", &service.Failure{Kind: service.KindUnsupportedMediaType}, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "file type is not allowed for this category"},
			{"too large", &service.Failure{Kind: service.KindFileTooLarge}, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the size limit for this category"},
			{"compression", &service.Failure{Kind: service.KindCompressionFailed}, http.StatusInternalServerError, "COMPRESSION_FAILED", "file could not be compressed"},
			{"filesystem", &service.Failure{Kind: service.KindFilesystemError}, http.StatusInternalServerError, "FILESYSTEM_ERROR", "file could not be stored"},
			{"unexpected", errors.New("boom /srv/secret"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockSvc := new(serviceMocks.MockUploadService)
				mockSvc.On("AcceptAndStore", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

				body, ct := multipartBody(t, nil, part{"image", "a.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF}})
				req := httptest.NewRequest(http.MethodPost, "/api/uploads/image/F01", body)
				req.Header.Set("Content-Type", ct)
				req.Header.Set(fiber.HeaderXRequestID, "rid-1")
				app := fiber.New()
				app.Use(middleware.RequestID())
				app.Post("/api/uploads/:category/:ownerId?", UploadFile(mockSvc))
				resp, err := app.Test(req)
				require.NoError(t, err)

				assert.Equal(t, tt.wantStatus, resp.StatusCode)
				res := decodeError(t, resp.Body)
				assert.Equal(t, tt.wantCode, res.Error.Code)
				assert.Equal(t, tt.wantMsg, res.Error.Message)
				assert.Equal(t, "rid-1", res.RequestID)
				mockSvc.AssertExpectations(t)
			})
		}
	})
}

func TestDeclaredMIME(t *testing.T) {
	assert.Equal(t, "image/png", declaredMIME("image/png", "x.jpg"))
	assert.Equal(t, "image/jpeg", declaredMIME("", "photo.JPG"))
	assert.Equal(t, "application/pdf", declaredMIME("application/octet-stream", "a.pdf"))
	assert.Equal(t, "application/octet-stream", declaredMIME("", "noext"))
}

func TestListUploads(t *testing.T) {
	mockSvc := new(serviceMocks.MockUploadService)
	app := fiber.New()
	app.Get("/api/uploads", ListUploads(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.UploadListResult{
			Items: []model.Upload{{ID: uuid.New().String(), OriginalName: "test.pdf"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, service.ListFilter{Category: "image", OwnerID: "F01"}, 5, 10).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads?category=image&owner=F01&limit=5&offset=10", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.UploadListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads?offset=-x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, service.ListFilter{Category: "thesis"}, 10, 0).Return(nil, category.ErrUnknownCategory).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads?category=thesis", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "UNKNOWN_CATEGORY", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, service.ListFilter{}, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetUpload(t *testing.T) {
	mockSvc := new(serviceMocks.MockUploadService)
	app := fiber.New()
	app.Get("/api/uploads/:id", GetUpload(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Upload{ID: id, OriginalName: "test.pdf"}
		mockSvc.On("Get", mock.Anything, id).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Upload
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteUpload(t *testing.T) {
	admin := &middleware.Session{OwnerID: "D01", Role: "dept_admin"}
	actor := service.Actor{OwnerID: "D01", Role: "dept_admin"}

	newApp := func(svc service.UploadService, s *middleware.Session) *fiber.App {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
		app.Delete("/api/uploads/:id", withSession(s), middleware.RequireSession(), DeleteUpload(svc))
		return app
	}

	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusNoContent, ""},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"service error", errors.New("delete error"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(serviceMocks.MockUploadService)
			id := uuid.New().String()
			mockSvc.On("Delete", mock.Anything, id, actor).Return(tt.svcErr).Once()

			req := httptest.NewRequest(http.MethodDelete, "/api/uploads/"+id, nil)
			resp, err := newApp(mockSvc, admin).Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, resp.Body).Error.Code)
			}
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		req := httptest.NewRequest(http.MethodDelete, "/api/uploads/"+uuid.New().String(), nil)
		resp, err := newApp(mockSvc, nil).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid id", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockUploadService)
		req := httptest.NewRequest(http.MethodDelete, "/api/uploads/nope", nil)
		resp, err := newApp(mockSvc, admin).Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp.Body).Error.Code)
	})
}

func TestListCategories(t *testing.T) {
	app := fiber.New()
	app.Get("/api/categories", ListCategories())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []categoryView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, len(category.All()))

	var img categoryView
	for _, v := range body.Data {
		if v.Slug == "image" {
			img = v
		}
	}
	assert.Equal(t, []string{"image/jpeg"}, img.MimeTypes)
	assert.Equal(t, "Faculty/Images/{id}", img.Directory)
	assert.Equal(t, "facultyId", img.OwnerField)
	assert.EqualValues(t, 2<<20, img.MaxSizeBytes)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockSvc := new(serviceMocks.MockUploadService)
	RegisterRoutes(app, db, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("delete requires session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/uploads/"+uuid.New().String(), nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestErrorHandler_BodyLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(), BodyLimit: 16})
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(make([]byte, 1024)))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
