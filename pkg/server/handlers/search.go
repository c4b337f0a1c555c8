package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/server/dto"
	"github.com/soundprediction/recall/pkg/types"
)

// SearchHandler handles search requests
type SearchHandler struct {
	recall recall.Recall
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(r recall.Recall) *SearchHandler {
	return &SearchHandler{recall: r}
}

// HybridSearch handles POST /search/hybrid
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.search(c, req.ToSearchRequest())
}

// TemporalSearch handles POST /search/temporal
func (h *SearchHandler) TemporalSearch(c *gin.Context) {
	var req dto.TemporalSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.SearchRequest.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	searchReq, err := req.ToSearchRequest()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.search(c, searchReq)
}

// Search handles POST /search, the basic entry point: an edge-only search
// over the default channels, answered as a flat fact list rather than the
// grouped hybrid shape.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// The basic endpoint ignores class, channel, and reranker overrides.
	searchReq := req.ToSearchRequest()
	searchReq.SearchEdges = true
	searchReq.SearchNodes = false
	searchReq.SearchEpisodes = false
	searchReq.SearchCommunities = false
	searchReq.UseLexical = true
	searchReq.UseVector = true
	searchReq.UseTraversal = false
	searchReq.Reranker = ""

	resp, err := h.recall.Search(c.Request.Context(), searchReq)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBasicSearchResponse(resp))
}

// search runs the request through the engine and writes the grouped response.
func (h *SearchHandler) search(c *gin.Context, req *types.SearchRequest) {
	resp, err := h.recall.Search(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSearchResponse(resp))
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrInvalidLimit),
		errors.Is(err, types.ErrNoClassesSelected),
		errors.Is(err, types.ErrUnknownClass):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "search_failed", err.Error())
	}
}

// writeError writes a JSON error response
func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
