package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"transaction-summary-api/internal/response"
	"transaction-summary-api/internal/services"

	"github.com/gin-gonic/gin"
)

// Uploader ingests one CSV file.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (services.UploadResult, error)
}

// UploadData handles multipart CSV uploads in the "file" field.
func (h *Handlers) UploadData(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, err)
			return
		}
		response.ErrorJSON(c, http.StatusBadRequest, "Missing upload field 'file'")
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	res, err := h.uploader.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, res)
}
