package handler

import (
	"errors"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"deptportal/internal/category"
	"deptportal/internal/http/middleware"
	"deptportal/internal/model"
	"deptportal/internal/service"
)

// fallbackField is accepted for every category in addition to its own field name.
const fallbackField = "file"

// UploadFile handles POST /api/uploads/:category/:ownerId? (multipart/form-data).
//
// @Summary      Upload a file into a category
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        category  path      string  true   "Category name or slug"
// @Param        ownerId   path      string  false  "Owner identifier"
// @Success      201       {object}  model.Receipt
// @Failure      400,404,413,415,500  {object}  errorPayload
// @Router       /api/uploads/{category}/{ownerId} [post]
func UploadFile(svc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := category.Lookup(c.Params("category"))
		if err != nil {
			return writeUploadError(c, err)
		}

		fh, err := c.FormFile(p.FieldName)
		if err != nil {
			fh, err = c.FormFile(fallbackField)
		}
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required in field "+p.FieldName)
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		req := model.UploadRequest{
			Category: string(p.Category),
			Owner:    ownerSources(c, p),
			File: model.RawFile{
				OriginalName: fh.Filename,
				MimeType:     declaredMIME(fh.Header.Get(fiber.HeaderContentType), fh.Filename),
				SizeBytes:    fh.Size,
				Reader:       f,
			},
		}

		rc, err := svc.AcceptAndStore(c.UserContext(), req)
		if err != nil {
			return writeUploadError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(rc)
	}
}

// ownerSources collects every owner identifier the request carries. The session subject
// only counts when its role owns the category.
func ownerSources(c *fiber.Ctx, p category.Policy) model.OwnerSources {
	src := model.OwnerSources{
		Route: c.Params("ownerId"),
		Body:  c.FormValue(p.OwnerKind.BodyField()),
		Query: c.Query(p.OwnerKind.BodyField()),
	}
	if s, ok := middleware.SessionFromCtx(c); ok && s.Role == p.OwnerKind.SessionRole() {
		src.Session = s.OwnerID
	}
	return src
}

// declaredMIME falls back to the filename extension when the part carries no useful type.
func declaredMIME(ct, filename string) string {
	ct = strings.TrimSpace(ct)
	if ct != "" && ct != fiber.MIMEOctetStream {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return fiber.MIMEOctetStream
}

// ListUploads handles GET /api/uploads with category, owner, limit and offset query params.
//
// @Summary      List uploads
// @Tags         uploads
// @Produce      json
// @Param        category  query     string  false  "Category name or slug"
// @Param        owner     query     string  false  "Owner identifier"
// @Param        limit     query     int     false  "Page size"  default(10)
// @Param        offset    query     int     false  "Offset"     default(0)
// @Success      200       {object}  service.UploadListResult
// @Failure      400,404,500  {object}  errorPayload
// @Router       /api/uploads [get]
func ListUploads(svc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		f := service.ListFilter{Category: c.Query("category"), OwnerID: c.Query("owner")}
		res, err := svc.List(c.UserContext(), f, limit, offset)
		if err != nil {
			if errors.Is(err, category.ErrUnknownCategory) {
				return writeUploadError(c, err)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetUpload handles GET /api/uploads/:id.
//
// @Summary      Get upload metadata
// @Tags         uploads
// @Produce      json
// @Param        id   path      string  true  "Upload ID"
// @Success      200  {object}  model.Upload
// @Failure      400,404,500  {object}  errorPayload
// @Router       /api/uploads/{id} [get]
func GetUpload(svc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(u)
	}
}

// DeleteUpload handles DELETE /api/uploads/:id. It must run behind middleware.RequireSession.
//
// @Summary      Delete an upload
// @Tags         uploads
// @Param        id   path  string  true  "Upload ID"
// @Success      204
// @Failure      400,401,403,404,500  {object}  errorPayload
// @Router       /api/uploads/{id} [delete]
func DeleteUpload(svc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		s, ok := middleware.SessionFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		err := svc.Delete(c.UserContext(), id, service.Actor{OwnerID: s.OwnerID, Role: s.Role})
		switch {
		case err == nil:
			return c.SendStatus(fiber.StatusNoContent)
		case errors.Is(err, service.ErrNotFound):
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		case errors.Is(err, service.ErrForbidden):
			return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "not allowed to delete this upload")
		default:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}
}

type categoryView struct {
	Category     category.Category  `json:"category"`
	Slug         string             `json:"slug"`
	FieldName    string             `json:"field_name"`
	OwnerKind    category.OwnerKind `json:"owner_kind"`
	OwnerField   string             `json:"owner_field"`
	MaxSizeBytes int64              `json:"max_size_bytes"`
	MimeTypes    []string           `json:"mime_types"`
	Directory    string             `json:"directory"`
}

// ListCategories handles GET /api/categories.
//
// @Summary      List upload categories and their limits
// @Tags         categories
// @Produce      json
// @Success      200  {array}  categoryView
// @Router       /api/categories [get]
func ListCategories() fiber.Handler {
	all := category.All()
	views := make([]categoryView, 0, len(all))
	for _, p := range all {
		views = append(views, categoryView{
			Category:     p.Category,
			Slug:         p.Slug,
			FieldName:    p.FieldName,
			OwnerKind:    p.OwnerKind,
			OwnerField:   p.OwnerKind.BodyField(),
			MaxSizeBytes: p.MaxSizeBytes,
			MimeTypes:    p.MimeTypes(),
			Directory:    p.DirectoryTemplate("{id}"),
		})
	}
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": views})
	}
}
