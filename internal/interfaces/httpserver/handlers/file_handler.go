package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"file-hub/internal/config"
	domain "file-hub/internal/domain/file"
	"file-hub/internal/interfaces/httpserver/requests"
	"file-hub/internal/interfaces/httpserver/responses"
)

// FileHandler exposes the file storage endpoints.
type FileHandler struct {
	cfg     *config.Config
	service *domain.Service
	log     zerolog.Logger
}

func NewFileHandler(cfg *config.Config, service *domain.Service, log zerolog.Logger) *FileHandler {
	return &FileHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "file-handler").Logger(),
	}
}

// Upload godoc
// @Summary      Upload a file
// @Description  Accepts a multipart upload. Byte-identical content is deduplicated against the existing payload.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "File to upload"
// @Success      201   {object}  responses.UploadResponse
// @Failure      400   {object}  responses.ErrorResponse
// @Router       /v1/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	upload, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{Error: "file is required"})
		return
	}
	defer upload.Close()

	data, err := io.ReadAll(io.LimitReader(upload, h.cfg.MaxFileBytes+1))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read upload")
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{Error: "failed to read file"})
		return
	}

	record, duplicated, err := h.service.Upload(
		c.Request.Context(),
		data,
		header.Filename,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("upload failed")
		responses.HandleError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, responses.BuildUploadResponse(record, duplicated))
}

// List godoc
// @Summary      List files
// @Description  Returns a filtered, ordered page of records, served from the shared result cache when possible.
// @Tags         files
// @Produce      json
// @Param        filename     query     string  false  "Substring match on the original filename"
// @Param        media_type   query     string  false  "Exact media type"
// @Param        is_duplicate query     bool    false  "Filter on duplicate status"
// @Param        min_size     query     int     false  "Minimum size in bytes"
// @Param        max_size     query     int     false  "Maximum size in bytes"
// @Param        page         query     int     false  "Page number (1-based)"
// @Param        page_size    query     int     false  "Page size"
// @Param        ordering     query     string  false  "uploaded_at|size|original_filename, '-' prefix for descending"
// @Success      200  {object}  responses.ListResponse
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /v1/files [get]
func (h *FileHandler) List(c *gin.Context) {
	var req requests.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{Error: err.Error()})
		return
	}

	page, cached, err := h.service.List(c.Request.Context(), req.ToFilter(), req.Page, req.PageSize, req.Ordering)
	if err != nil {
		h.log.Error().Err(err).Msg("list failed")
		responses.HandleError(c, err, "list failed")
		return
	}

	c.JSON(http.StatusOK, responses.BuildListResponse(page, cached))
}

// Download godoc
// @Summary      Download file content
// @Description  Streams the payload as an attachment. Duplicates resolve to the shared payload.
// @Tags         files
// @Produce      octet-stream
// @Param        id   path      string  true  "File ID"
// @Success      200  "binary data"
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	id := c.Param("id")

	reader, record, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("download failed")
		responses.HandleError(c, err, "download failed")
		return
	}
	defer reader.Close()

	mediaType := record.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	c.Header("Content-Type", mediaType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalFilename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("stream error")
	}
}

// Delete godoc
// @Summary      Delete a file record
// @Description  Removes the record. Deleting an owner with duplicates transfers ownership to the oldest duplicate; the payload is released only with the last record of its group.
// @Tags         files
// @Param        id   path      string  true  "File ID"
// @Success      204  "deleted"
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v1/files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("delete failed")
		responses.HandleError(c, err, "delete failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// Duplicates godoc
// @Summary      List duplicated owners
// @Description  Returns owner records that currently have at least one duplicate.
// @Tags         files
// @Produce      json
// @Success      200  {array}  responses.FileRecordResponse
// @Router       /v1/files/duplicates [get]
func (h *FileHandler) Duplicates(c *gin.Context) {
	records, err := h.service.ListDuplicateOwners(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("duplicates listing failed")
		responses.HandleError(c, err, "duplicates listing failed")
		return
	}

	c.JSON(http.StatusOK, responses.BuildFileRecordResponses(records))
}

// Stats godoc
// @Summary      Storage statistics
// @Description  Returns deduplication and storage-efficiency statistics, cached under a fixed key.
// @Tags         files
// @Produce      json
// @Success      200  {object}  responses.StatsResponse
// @Router       /v1/files/stats [get]
func (h *FileHandler) Stats(c *gin.Context) {
	stats, cached, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("stats failed")
		responses.HandleError(c, err, "stats failed")
		return
	}

	c.JSON(http.StatusOK, responses.BuildStatsResponse(stats, cached))
}
