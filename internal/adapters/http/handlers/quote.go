package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quoteboard/internal/adapters/http/dto"
	"github.com/jsamuelsen/quoteboard/internal/app"
	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// ExportFilename is the attachment name of the export download.
const ExportFilename = "quotes.json"

// importFormField is the multipart field an import file is uploaded under.
const importFormField = "file"

// QuoteHandler exposes the quote store over HTTP.
type QuoteHandler struct {
	store *app.Store
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(store *app.Store) *QuoteHandler {
	return &QuoteHandler{store: store}
}

// ListQuotes handles GET /api/v1/quotes
//
// @Summary List quotes
// @Description Lists quotes, optionally restricted to one category
// @Tags quotes
// @Produce json
// @Param category query string false "Category filter, All for every quote"
// @Success 200 {object} dto.QuoteListResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var q dto.ListQuotesQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	category := strings.TrimSpace(q.Category)
	quotes := h.store.ListQuotes(category)

	if category == "" {
		category = domain.CategoryAll
	}

	c.JSON(http.StatusOK, dto.QuoteListResponse{
		Category: category,
		Count:    len(quotes),
		Quotes:   dto.FromQuotes(quotes),
	})
}

// RandomQuote handles GET /api/v1/quotes/random
// Without a category parameter the selected filter applies.
//
// @Summary Show a random quote
// @Tags quotes
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse "no quote in the category"
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	category, ok := c.GetQuery("category")
	if !ok {
		category = h.store.SelectedCategory()
	}

	quote, found := h.store.PickRandom(c.Request.Context(), category)
	if !found {
		dto.RespondWithErrorCode(c, dto.ErrorCodeNotFound,
			fmt.Sprintf("no quotes in category %q", category))
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// AddQuote handles POST /api/v1/quotes
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.AddQuoteRequest true "New quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	quote, err := h.store.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromQuote(quote))
}

// ExportQuotes handles GET /api/v1/quotes/export
//
// @Summary Download every quote as a JSON file
// @Tags quotes
// @Produce json
// @Success 200 {array} dto.QuoteResponse
// @Router /api/v1/quotes/export [get]
func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	data, err := h.store.ExportQuotes()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ImportQuotes handles POST /api/v1/quotes/import
// The payload is either a JSON request body or a multipart upload in the
// "file" field.
//
// @Summary Import quotes from a JSON file
// @Tags quotes
// @Accept json,mpfd
// @Produce json
// @Success 200 {object} dto.ImportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes/import [post]
func (h *QuoteHandler) ImportQuotes(c *gin.Context) {
	data, err := readImportPayload(c)
	if err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	imported, err := h.store.ImportJSON(c.Request.Context(), data)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{
		Imported: imported,
		Total:    h.store.Len(),
	})
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return io.ReadAll(c.Request.Body)
	}

	header, err := c.FormFile(importFormField)
	if err != nil {
		return nil, fmt.Errorf("reading %s field: %w", importFormField, err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	return io.ReadAll(f)
}

// ListCategories handles GET /api/v1/categories
//
// @Summary List categories
// @Description Returns All followed by every distinct category in byte order
// @Tags categories
// @Produce json
// @Success 200 {object} dto.CategoriesResponse
// @Router /api/v1/categories [get]
func (h *QuoteHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: h.store.ListCategories(),
		Selected:   h.store.SelectedCategory(),
	})
}

// GetFilter handles GET /api/v1/filter
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FilterResponse{Category: h.store.SelectedCategory()})
}

// SetFilter handles PUT /api/v1/filter
//
// @Summary Change the category filter
// @Tags categories
// @Accept json
// @Produce json
// @Param filter body dto.FilterRequest true "Category, blank for All"
// @Success 200 {object} dto.FilterResponse
// @Router /api/v1/filter [put]
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	category, err := h.store.SelectCategory(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: category})
}

// LastViewed handles GET /api/v1/session/last-viewed
//
// @Summary Quote last shown in this session
// @Tags session
// @Produce json
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/session/last-viewed [get]
func (h *QuoteHandler) LastViewed(c *gin.Context) {
	quote, err := h.store.LastViewed(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// Sync handles POST /api/v1/sync
// A failed sync is still a 200; the outcome carries the failure.
//
// @Summary Sync with the remote quote service now
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncOutcomeResponse
// @Router /api/v1/sync [post]
func (h *QuoteHandler) Sync(c *gin.Context) {
	outcome := h.store.Sync(c.Request.Context())

	c.JSON(http.StatusOK, toOutcomeResponse(outcome))
}

// SyncStatus handles GET /api/v1/sync/status
//
// @Summary Sync state and last result
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncStatusResponse
// @Router /api/v1/sync/status [get]
func (h *QuoteHandler) SyncStatus(c *gin.Context) {
	status := h.store.Status()

	resp := dto.SyncStatusResponse{State: status.Phase.String()}
	if !status.LastSyncAt.IsZero() {
		at := status.LastSyncAt
		resp.LastSyncAt = &at
	}

	if status.LastOutcome != nil {
		outcome := toOutcomeResponse(*status.LastOutcome)
		resp.LastOutcome = &outcome
	}

	c.JSON(http.StatusOK, resp)
}

func toOutcomeResponse(o app.SyncOutcome) dto.SyncOutcomeResponse {
	return dto.SyncOutcomeResponse{
		Added:     o.Added,
		Updated:   o.Updated,
		Conflicts: o.Conflicts,
		At:        o.At,
		Failed:    o.Failed,
		Reason:    o.Reason,
	}
}

// RegisterQuoteRoutes registers the quote board routes on the given group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/export", h.ExportQuotes)
	quotes.POST("/import", h.ImportQuotes)

	rg.GET("/categories", h.ListCategories)
	rg.GET("/filter", h.GetFilter)
	rg.PUT("/filter", h.SetFilter)
	rg.GET("/session/last-viewed", h.LastViewed)

	rg.POST("/sync", h.Sync)
	rg.GET("/sync/status", h.SyncStatus)
}
