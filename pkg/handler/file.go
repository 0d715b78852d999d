package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/knowbase/file-backend/pkg/repository"
	"github.com/knowbase/file-backend/pkg/service"
)

// ListFiles returns a page of file records.
func (h *Handler) ListFiles(c *gin.Context) {
	params := repository.ListFilesParams{
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", repository.DefaultPageSize),
		FileType:    c.Query("file_type"),
		Search:      c.Query("search"),
		ShowDeleted: c.Query("show_deleted") == "true",
	}
	list, err := h.service.ListFiles(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":     list.Files,
		"total":     list.Total,
		"page":      list.Page,
		"page_size": list.PageSize,
		"pages":     list.Pages,
	})
}

// GetFile returns one record's metadata.
func (h *Handler) GetFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, err := h.service.GetFile(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type updateFileRequest struct {
	Description string `json:"description"`
}

// UpdateFile changes a record's description.
func (h *Handler) UpdateFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	file, err := h.service.UpdateFileDescription(c.Request.Context(), h.actor(c), id, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// UploadFile ingests a single uploaded file.
func (h *Handler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	category := c.PostForm("file_type")

	src, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer src.Close()

	file, err := h.service.IngestFile(c.Request.Context(), service.IngestRequest{
		Filename:    header.Filename,
		Category:    category,
		Description: c.PostForm("description"),
		Size:        header.Size,
		Content:     src,
		Actor:       h.actor(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// BatchUpload ingests many files under one category, degrading per file.
func (h *Handler) BatchUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files given"})
		return
	}
	category := c.PostForm("file_type")
	descriptions := form.Value["descriptions"]
	actor := h.actor(c)

	reqs := make([]service.IngestRequest, 0, len(headers))
	result := &service.BatchResult{}
	for i, header := range headers {
		src, err := header.Open()
		if err != nil {
			result.Failed = append(result.Failed, service.BatchFailure{
				Filename: header.Filename,
				Reason:   err.Error(),
			})
			continue
		}
		defer src.Close()

		description := ""
		if i < len(descriptions) {
			description = descriptions[i]
		}
		reqs = append(reqs, service.IngestRequest{
			Filename:    header.Filename,
			Category:    category,
			Description: description,
			Size:        header.Size,
			Content:     src,
			Actor:       actor,
		})
	}

	batch := h.service.IngestBatch(c.Request.Context(), reqs)
	result.Succeeded = batch.Succeeded
	result.Failed = append(result.Failed, batch.Failed...)

	status := http.StatusCreated
	if len(result.Succeeded) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// DownloadFile serves the original as an attachment.
func (h *Handler) DownloadFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, abs, err := h.service.ResolveOriginal(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.FileAttachment(abs, file.OriginalFilename)
}

// previewContentTypes maps formats previewable inline to their media type.
var previewContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
}

// PreviewFile serves image/video/pdf content inline; other categories get a
// download-URL indirection.
func (h *Handler) PreviewFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, abs, err := h.service.ResolveOriginal(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if contentType, ok := previewContentTypes[file.FileFormat]; ok {
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(file.OriginalFilename)))
		c.File(abs)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("/api/files/%d/download", file.ID),
	})
}

// DownloadPDF serves the derived PDF of a document-category file. The route
// is unauthenticated so embedded viewers can load it; ?preview=1 selects
// inline disposition.
func (h *Handler) DownloadPDF(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, abs, err := h.service.ResolvePDF(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	disposition := "attachment"
	if c.Query("preview") == "1" {
		disposition = "inline"
	}
	name := file.OriginalFilename + ".pdf"
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(name)))
	c.File(abs)
}

// FileMarkdown returns the derived Markdown of a file.
func (h *Handler) FileMarkdown(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, abs, err := h.service.ResolveMarkdown(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.Header("X-Images-Dir", derefOrEmpty(file.ImagesDir))
	c.File(abs)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DeleteFile removes one file under the given strategy.
func (h *Handler) DeleteFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	strategy, err := service.ParseDeleteStrategy(c.Query("delete_strategy"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.service.DeleteFiles(c.Request.Context(), h.actor(c), []uint{id}, strategy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result.Items[0].Status == service.DeleteStatusNotFound {
		c.JSON(http.StatusNotFound, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type batchDeleteRequest struct {
	FileIDs        []uint `json:"file_ids" binding:"required"`
	DeleteStrategy string `json:"delete_strategy"`
}

// BatchDelete removes many files in one request, echoing per-item outcomes
// and the collapsed remote-delete result.
func (h *Handler) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_ids is required"})
		return
	}
	strategy, err := service.ParseDeleteStrategy(req.DeleteStrategy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.service.DeleteFiles(c.Request.Context(), h.actor(c), req.FileIDs, strategy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
