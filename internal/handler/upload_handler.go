package handler

import (
	"net/http"

	"classline/internal/services"
	"classline/internal/transport/httpdto"
	classline_errors "classline/pkg/errors"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// StoreMessageFile accepts a multipart form with a single "file" field and
// returns the upload session id to reference from a subsequent send.
func (h *UploadHandler) StoreMessageFile(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("file field is required", "INVALID_REQUEST"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, classline_errors.ErrInvalidInput)
		return
	}
	defer file.Close()

	result, err := h.service.Store(c.Request.Context(), services.UploadInput{
		UploaderID:  userID,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(result))
}
