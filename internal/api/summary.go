package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
	"transaction-summary-api/internal/response"
	"transaction-summary-api/internal/services"

	"github.com/gin-gonic/gin"
)

const responseTimeLayout = "2006-01-02T15:04:05.999999"

// Summarizer computes a user's summary.
type Summarizer interface {
	GetSummary(ctx context.Context, userID int64, start, end *time.Time) (*services.Summary, error)
}

// SummaryResponse is the JSON shape of a summary. Amounts are JSON numbers
// with exactly two fractional digits.
type SummaryResponse struct {
	UserID           int64       `json:"user_id"`
	Start            *string     `json:"start,omitempty"`
	End              *string     `json:"end,omitempty"`
	TransactionCount int64       `json:"transaction_count"`
	Mean             json.Number `json:"mean"`
	Maximum          json.Number `json:"maximum"`
	Minimum          json.Number `json:"minimum"`
}

// GetSummary handles GET /summary/:user_id?start=&end=
func (h *Handlers) GetSummary(c *gin.Context) {
	raw := c.Param("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(c, &services.ValidationError{
			Kind:    services.InvalidIdentifier,
			Field:   "user_id",
			Value:   raw,
			Message: "Invalid user_id: " + raw,
		})
		return
	}

	start, err := services.ParseQueryTime(c.Query("start"))
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := services.ParseQueryTime(c.Query("end"))
	if err != nil {
		writeError(c, err)
		return
	}

	s, err := h.summarizer.GetSummary(c.Request.Context(), userID, start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, toSummaryResponse(s))
}

func toSummaryResponse(s *services.Summary) SummaryResponse {
	return SummaryResponse{
		UserID:           s.UserID,
		Start:            formatBound(s.Start),
		End:              formatBound(s.End),
		TransactionCount: s.TransactionCount,
		Mean:             json.Number(s.Mean.StringFixed(2)),
		Maximum:          json.Number(s.Maximum.StringFixed(2)),
		Minimum:          json.Number(s.Minimum.StringFixed(2)),
	}
}

func formatBound(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(responseTimeLayout)
	return &s
}
