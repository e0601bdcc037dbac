// Package httpapi is Trans-Hub's thin HTTP transport over the
// Coordinator (spec §4.8's four public operations exposed as REST).
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"transhub/internal/coordinator"
	"transhub/internal/logger"
)

const correlationHeader = "X-Request-Id"

// Handler wraps a Coordinator with its REST surface.
type Handler struct {
	coordinator *coordinator.Coordinator
}

// NewHandler builds a Handler over an already-initialized Coordinator.
func NewHandler(c *coordinator.Coordinator) *Handler {
	return &Handler{coordinator: c}
}

// NewRouter wires the Handler's routes behind recovery and request
// logging middleware, matching the teacher's router.go shape.
func NewRouter(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestIDMiddleware())
	e.Use(RequestLoggerMiddleware())

	v1 := e.Group("/v1")
	v1.POST("/requests", h.PostRequest)
	v1.GET("/translations", h.GetTranslation)
	v1.POST("/process/:lang", h.PostProcess)
	v1.POST("/gc", h.PostGC)

	return e
}

func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(correlationHeader, uuid.NewString())
			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeCoordinatorError(c echo.Context, err error) error {
	var validation *coordinator.ValidationError
	var config *coordinator.ConfigurationError

	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &config):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		logger.Error("httpapi request failed", "module", "httpapi", "action", "request", "resource", "http", "result", "failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// requestBody is the wire shape of POST /v1/requests.
type requestBody struct {
	TargetLangs      []string       `json:"target_langs"`
	Text             any            `json:"text"`
	BusinessID       *string        `json:"business_id,omitempty"`
	ContextPayload   map[string]any `json:"context,omitempty"`
	SourceLang       *string        `json:"source_lang,omitempty"`
	ForceRetranslate bool           `json:"force_retranslate,omitempty"`
}

// PostRequest implements POST /v1/requests (spec §4.8's request()).
func (h *Handler) PostRequest(c echo.Context) error {
	var body requestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	err := h.coordinator.Request(c.Request().Context(), coordinator.RequestInput{
		TargetLangs:      body.TargetLangs,
		Text:             body.Text,
		BusinessID:       body.BusinessID,
		ContextPayload:   body.ContextPayload,
		SourceLang:       body.SourceLang,
		ForceRetranslate: body.ForceRetranslate,
	})
	if err != nil {
		return writeCoordinatorError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// GetTranslation implements GET /v1/translations?business_id=...&lang=...
// (spec §4.8's get_translation()).
func (h *Handler) GetTranslation(c echo.Context) error {
	businessID := c.QueryParam("business_id")
	lang := c.QueryParam("lang")
	if businessID == "" || lang == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "business_id and lang are required"})
	}

	var contextPayload map[string]any
	if raw := c.QueryParam("context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &contextPayload); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "context must be a JSON object"})
		}
	}

	result, err := h.coordinator.GetTranslation(c.Request().Context(), businessID, lang, contextPayload)
	if err != nil {
		return writeCoordinatorError(c, err)
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "translation not found"})
	}
	return c.JSON(http.StatusOK, result)
}

// processRequest is the wire shape of POST /v1/process/:lang.
type processRequest struct {
	Limit         int  `json:"limit,omitempty"`
	BatchSize     int  `json:"batch_size,omitempty"`
	IncludeFailed bool `json:"include_failed,omitempty"`
}

// PostProcess implements POST /v1/process/:lang, streaming one
// TranslationResult per NDJSON line as the Processing Policy produces
// them (spec §4.8's process_pending(), grounded on the teacher's
// NDJSON batch-translate streaming response).
func (h *Handler) PostProcess(c echo.Context) error {
	lang := c.Param("lang")
	if lang == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "lang is required"})
	}

	var body processRequest
	_ = c.Bind(&body) // an empty body is valid: every field defaults.

	ctx := c.Request().Context()
	out, errs := h.coordinator.ProcessPending(ctx, lang, coordinator.ProcessOptions{
		Limit:         body.Limit,
		BatchSize:     body.BatchSize,
		IncludeFailed: body.IncludeFailed,
	})

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(c.Response())
	for result := range out {
		if err := encoder.Encode(result); err != nil {
			return nil
		}
		c.Response().Flush()
	}

	if err := <-errs; err != nil && ctx.Err() == nil {
		logger.Error("process_pending stream ended with error", "module", "httpapi", "action", "process_pending", "resource", "translation", "result", "failed", "error", err)
	}
	return nil
}

// gcRequest is the wire shape of POST /v1/gc.
type gcRequest struct {
	RetentionDays int  `json:"retention_days,omitempty"`
	DryRun        bool `json:"dry_run,omitempty"`
}

// PostGC implements POST /v1/gc (spec §4.8's run_garbage_collection()).
func (h *Handler) PostGC(c echo.Context) error {
	var body gcRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	counts, err := h.coordinator.RunGarbageCollection(c.Request().Context(), body.RetentionDays, body.DryRun)
	if err != nil {
		return writeCoordinatorError(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}
