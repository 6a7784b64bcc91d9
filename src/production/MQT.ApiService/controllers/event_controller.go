package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	events "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/events"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// EventController handles event store requests
type EventController struct {
	events *events.Service
	logger *logger.Logger
}

// NewEventController creates a new event controller
func NewEventController(events *events.Service, logger *logger.Logger) *EventController {
	return &EventController{
		events: events,
		logger: logger,
	}
}

// RegisterRoutes registers the event routes with Gin
func (c *EventController) RegisterRoutes(router *gin.Engine) {
	router.GET("/get-latest-values", c.GetLatestValues)

	eventsGroup := router.Group("/events")
	{
		eventsGroup.GET("/latest", c.QueryLatest)
		eventsGroup.POST("", c.RecordEvent)
	}
}

// GetLatestValues lists the classified telemetry keys seen in a device's recent events
func (c *EventController) GetLatestValues(ctx *gin.Context) {
	deviceID := strings.TrimSpace(ctx.Query("device_id"))
	entityName := strings.TrimSpace(ctx.Query("deviceName"))
	rawModuleID := strings.TrimSpace(ctx.Query("module_id"))
	if deviceID == "" || entityName == "" || rawModuleID == "" {
		badRequest(ctx, apperrors.CodeMissingParams, "Missing required parameters")
		return
	}

	moduleID, err := events.ParseModuleID(rawModuleID)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	keys, err := c.events.DiscoverKeys(ctx.Request.Context(), deviceID, entityName, moduleID)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.LatestValuesResponse{DynamicFieldsKeys: keys})
}

func (c *EventController) QueryLatest(ctx *gin.Context) {
	deviceID := strings.TrimSpace(ctx.Query("device_id"))
	entityName := strings.TrimSpace(ctx.Query("entity_name"))
	rawModuleID := strings.TrimSpace(ctx.Query("module_id"))
	if deviceID == "" || entityName == "" || rawModuleID == "" {
		badRequest(ctx, apperrors.CodeMissingParams, "Missing required parameters")
		return
	}

	moduleID, err := events.ParseModuleID(rawModuleID)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(ctx, apperrors.CodeMissingParams, "limit must be an integer")
			return
		}
	}

	items, err := c.events.QueryLatest(ctx.Request.Context(), deviceID, entityName, moduleID, limit)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.ItemsResponse{Items: items})
}

func (c *EventController) RecordEvent(ctx *gin.Context) {
	var req api_models.RecordEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		metrics.IncIngestError("invalid_payload")
		badRequest(ctx, apperrors.CodeInvalidPayload, "Invalid request body")
		return
	}
	if req.ModuleID == nil {
		metrics.IncIngestError("missing_params")
		badRequest(ctx, apperrors.CodeMissingParams, "Missing required parameters")
		return
	}

	event, err := c.events.RecordEvent(ctx.Request.Context(), req.DeviceID, req.EntityName, *req.ModuleID, events.RenderFields(req.Fields))
	if err != nil {
		metrics.IncIngestError(apperrors.CodeOf(err))
		respondError(ctx, c.logger, err)
		return
	}

	metrics.AddIngested(metrics.SourceHTTP, 1)
	ctx.JSON(http.StatusCreated, api_models.MessageResponse{Message: "Event recorded", Data: event})
}
