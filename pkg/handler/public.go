package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/knowbase/file-backend/pkg/artifact"
)

// PublicMarkdown serves a Markdown artifact by its stored name
// ({ingestID}.md). Unauthenticated: published Markdown is meant for external
// viewers. Anything that is not a Markdown basename under md/ is refused.
func (h *Handler) PublicMarkdown(c *gin.Context) {
	name := c.Param("name")
	if !strings.HasSuffix(name, ".md") {
		c.JSON(http.StatusNotFound, gin.H{"error": "markdown not found"})
		return
	}
	abs, err := h.store.ResolvePublic(artifact.MarkdownDirName, name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.File(abs)
}

// PublicMarkdownInfo returns the public URLs of a file's Markdown artifact
// and its extracted images. 404 for unknown, soft-deleted and never-parsed
// files alike, so the route does not leak record existence.
func (h *Handler) PublicMarkdownInfo(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, _, err := h.service.ResolveMarkdown(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	mdName := filepath.Base(*file.MDPath)
	ingestID := strings.TrimSuffix(mdName, ".md")

	images := []string{}
	if file.ImagesDir != nil {
		names, err := h.store.ListDir(*file.ImagesDir)
		if err != nil {
			h.writeError(c, err)
			return
		}
		for _, name := range names {
			images = append(images, "/public/md/"+ingestID+"/"+name)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id":           file.ID,
		"original_filename": file.OriginalFilename,
		"md_url":            "/public/md/" + mdName,
		"images":            images,
	})
}

// PublicImage serves one image out of an ingest namespace
// (md/{ingestID}/{image}). Path traversal is rejected at the join.
func (h *Handler) PublicImage(c *gin.Context) {
	abs, err := h.store.ResolvePublic(artifact.MarkdownDirName, c.Param("name"), c.Param("image"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.File(abs)
}
