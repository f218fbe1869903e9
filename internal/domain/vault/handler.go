package vault

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/response"
)

// Handler serves the file endpoints. Admin status and CSRF checks happen in
// middleware; the handler only reads the result from the context.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List godoc
// @Summary List files
// @Description Newest uploads first
// @Tags Files
// @Produce json
// @Success 200 {object} response.Response{data=[]FileResponse}
// @Router /files [get]
func (h *Handler) List(c *gin.Context) {
	files, err := h.service.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]FileResponse, 0, len(files))
	for _, f := range files {
		items = append(items, NewFileResponse(f))
	}
	response.Success(c, http.StatusOK, items)
}

// Upload godoc
// @Summary Upload a file
// @Description Identical content is stored once and shared between records.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param file formData file true "File to upload"
// @Success 201 {object} response.Response{data=FileResponse}
// @Failure 400,403,413,500 {object} response.Response
// @Router /files [post]
func (h *Handler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit")
			return
		}
		response.Error(c, http.StatusBadRequest, "NO_FILE", "No file provided")
		return
	}

	content, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_FORM", "Failed to read uploaded file")
		return
	}
	defer content.Close()

	f, err := h.service.Upload(c.Request.Context(), UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, NewFileResponse(f))
}

// Detail godoc
// @Summary File details
// @Tags Files
// @Produce json
// @Param id path int true "File ID"
// @Success 200 {object} response.Response{data=FileDetailResponse}
// @Failure 400,404 {object} response.Response
// @Router /files/{id} [get]
func (h *Handler) Detail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewFileDetailResponse(f))
}

// Download godoc
// @Summary Download a file
// @Description Served as an attachment under the original filename.
// @Tags Files
// @Produce octet-stream
// @Param id path int true "File ID"
// @Success 200 {file} file
// @Failure 400,404 {object} response.Response
// @Router /files/{id}/download [get]
func (h *Handler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, blob, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer blob.Close()

	c.Header("Content-Type", f.ContentType)
	serveBlob(c, f, blob, "attachment")
	if c.Writer.Status() == http.StatusOK {
		h.service.CountDownload(context.WithoutCancel(c.Request.Context()), id)
	}
}

// Raw godoc
// @Summary Inline preview
// @Description Sandboxed so uploaded HTML or SVG cannot run scripts.
// @Tags Files
// @Param id path int true "File ID"
// @Success 200 {file} file
// @Failure 400,404 {object} response.Response
// @Router /files/{id}/raw [get]
func (h *Handler) Raw(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, blob, err := h.service.OpenRaw(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer blob.Close()

	contentType := f.ContentType
	if PreviewKind(contentType) == PreviewText {
		contentType = "text/plain; charset=utf-8"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Security-Policy", "sandbox")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "no-referrer")
	serveBlob(c, f, blob, "inline")
}

// Delete godoc
// @Summary Delete a file
// @Description The blob is removed once no other record shares it.
// @Tags Files
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param id path int true "File ID"
// @Success 200 {object} response.Response
// @Failure 400,403,404,500 {object} response.Response
// @Router /files/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// BulkDelete godoc
// @Summary Delete several files
// @Description Unknown ids are skipped; the response reports how many were deleted.
// @Tags Files
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body BulkDeleteRequest true "IDs to delete"
// @Success 200 {object} response.Response{data=BulkDeleteResponse}
// @Failure 400,403,500 {object} response.Response
// @Router /files/bulk-delete [post]
func (h *Handler) BulkDelete(c *gin.Context) {
	ids, err := bulkIDs(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "ids must be positive integers")
		return
	}
	n, err := h.service.BulkDelete(c.Request.Context(), actorFrom(c), ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

// Sweep godoc
// @Summary Reclaim orphaned blobs
// @Tags Admin
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param dry_run query bool false "Only report orphans"
// @Success 200 {object} response.Response{data=SweepResult}
// @Failure 403,500 {object} response.Response
// @Router /admin/blobs/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	if !actorFrom(c).Admin {
		h.fail(c, ErrForbidden)
		return
	}
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	res, err := h.service.Sweep(c.Request.Context(), !dryRun)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoContent):
		response.Error(c, http.StatusBadRequest, "NO_FILE", "No file provided")
	case errors.Is(err, ErrInvalidFilename):
		response.Error(c, http.StatusBadRequest, "INVALID_FILENAME", "Filename is empty after sanitizing")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Admin access required")
	case errors.Is(err, ErrFileNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "File not found")
	case errors.Is(err, ErrBlobMissing):
		response.Error(c, http.StatusNotFound, "BLOB_MISSING", "File content is missing")
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("file request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func actorFrom(c *gin.Context) Actor {
	return Actor{Admin: c.GetBool("is_admin")}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid file ID")
		return 0, false
	}
	return id, true
}

// bulkIDs accepts a JSON body or form values. Form values may repeat the
// ids field or carry a comma separated list.
func bulkIDs(c *gin.Context) ([]int64, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req BulkDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		for _, id := range req.IDs {
			if id <= 0 {
				return nil, strconv.ErrSyntax
			}
		}
		return req.IDs, nil
	}

	var ids []int64
	for _, raw := range c.PostFormArray("ids") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, strconv.ErrSyntax
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func serveBlob(c *gin.Context, f File, blob *os.File, disposition string) {
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{
		"filename": f.OriginalFilename,
	}))
	http.ServeContent(c.Writer, c.Request, f.OriginalFilename, f.UploadedAt, blob)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
