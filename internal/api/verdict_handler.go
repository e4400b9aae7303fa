// Package api serves the verdict ledger over HTTP. Every route is read-only.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	apperrors "glyphstat/internal/errors"
	"glyphstat/internal/logging"
	"glyphstat/ports"
)

// MaxPageSize caps the limit query parameter.
const MaxPageSize = 500

// VerdictHandler handles verdict queries
type VerdictHandler struct {
	ledger ports.LedgerReaderPort
	logger *zap.Logger
}

// NewVerdictHandler creates a handler over a read-only ledger view.
func NewVerdictHandler(ledger ports.LedgerReaderPort, logger *zap.Logger) *VerdictHandler {
	return &VerdictHandler{ledger: ledger, logger: logging.OrNop(logger).Named("api")}
}

// ListVerdicts returns verdicts filtered by status, family_id and latest,
// paged with limit and offset.
func (h *VerdictHandler) ListVerdicts(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	recs, err := h.ledger.List(c.Request.Context(), filters)
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []*verdict.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"verdicts": recs, "count": len(recs)})
}

// GetVerdict returns one verdict by id.
func (h *VerdictHandler) GetVerdict(c *gin.Context) {
	id, err := core.ParseVerdictID(c.Param("id"))
	if err != nil {
		h.fail(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}
	rec, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetHistory returns every revision of a hypothesis, oldest first.
func (h *VerdictHandler) GetHistory(c *gin.Context) {
	id, err := core.ParseHypothesisID(c.Param("id"))
	if err != nil {
		h.fail(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}
	recs, err := h.ledger.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hypothesis_id": id, "revisions": recs, "count": len(recs)})
}

func (h *VerdictHandler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.GetCode(err)})
}

func parseFilters(c *gin.Context) (ports.VerdictFilters, error) {
	var f ports.VerdictFilters
	if s := c.Query("status"); s != "" {
		status := verdict.Status(s)
		if !status.IsValid() {
			return f, apperrors.InvalidInput("unknown status " + s)
		}
		f.Status = &status
	}
	if s := c.Query("family_id"); s != "" {
		fid := core.FamilyID(s)
		f.FamilyID = &fid
	}
	if s := c.Query("latest"); s != "" {
		latest, err := strconv.ParseBool(s)
		if err != nil {
			return f, apperrors.InvalidInput("latest must be a boolean")
		}
		f.LatestOnly = latest
	}
	var err error
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return f, err
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, apperrors.InvalidInput(name + " must be a non-negative integer")
	}
	return v, nil
}
