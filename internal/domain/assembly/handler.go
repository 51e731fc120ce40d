package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
)

// ChatStreamer generates a streamed answer from a query and its context.
type ChatStreamer interface {
	Stream(ctx context.Context, query, contextText string) (<-chan string, <-chan error)
}

type Handler struct {
	assembler *Assembler
	chat      ChatStreamer
}

func NewHandler(assembler *Assembler, chat ChatStreamer) *Handler {
	return &Handler{assembler: assembler, chat: chat}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/context", h.Context)
	api.POST("/patients/:id/chat", h.Chat)
}

type contextRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k"`
	TokenBudget int    `json:"token_budget"`
}

func (h *Handler) Context(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req contextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bundle, err := h.assembler.Assemble(c.Request().Context(), patientID, req.Query, req.TopK, req.TokenBudget)
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bundle)
}

type chatRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k"`
	TokenBudget int    `json:"token_budget"`
}

type chatEvent struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// Chat streams a grounded answer as server-sent events, one JSON payload per
// generated fragment, terminated by a done event.
func (h *Handler) Chat(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	ctx := c.Request().Context()
	bundle, err := h.assembler.Assemble(ctx, patientID, req.Query, req.TopK, req.TokenBudget)
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	chunks, errc := h.chat.Stream(ctx, req.Query, bundle.ContextText())
	for chunk := range chunks {
		if err := writeEvent(resp, chatEvent{Content: chunk}); err != nil {
			return nil // client went away
		}
	}
	if err := <-errc; err != nil {
		writeEvent(resp, chatEvent{Error: err.Error()})
		return nil
	}
	writeEvent(resp, chatEvent{Done: true})
	return nil
}

func writeEvent(resp *echo.Response, event chatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
