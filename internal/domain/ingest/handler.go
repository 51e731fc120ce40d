package ingest

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/batches", h.Submit)
	api.GET("/batches", h.List)
	api.GET("/batches/:id", h.Get)
	api.POST("/batches/:id/cancel", h.Cancel)
	api.POST("/batches/:id/items/:item_id/review", h.Review)
	api.GET("/batches/:id/items/:item_id/history", h.ItemHistory)
}

// Submit accepts a multipart upload: one or more "files" parts plus
// processing_mode and optional default_document_type form fields.
func (h *Handler) Submit(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}

	mode := c.FormValue("processing_mode")
	docType := c.FormValue("default_document_type")

	var files []FileUpload
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		files = append(files, FileUpload{Name: fh.Filename, Content: content})
	}

	batch, err := h.svc.Submit(c.Request().Context(), mode, docType, files)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, batch)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrBatchNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	batches, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(batches, total, pg.Limit, pg.Offset))
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err = h.svc.Cancel(c.Request().Context(), id)
	if errors.Is(err, ErrBatchNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) Review(c echo.Context) error {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var decision ReviewDecision
	if err := c.Bind(&decision); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item, err := h.svc.ResolveReview(c.Request().Context(), batchID, itemID, decision)
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrBatchNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotReviewable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidReview):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ItemHistory(c echo.Context) error {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	history, err := h.svc.ItemHistory(c.Request().Context(), batchID, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history)
}
