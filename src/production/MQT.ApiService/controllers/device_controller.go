package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	aggregation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/aggregation"
	registry "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/registry"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// DeviceController handles site registry and latest-event requests
type DeviceController struct {
	registry    *registry.Service
	aggregation *aggregation.Service
	logger      *logger.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(registry *registry.Service, aggregation *aggregation.Service, logger *logger.Logger) *DeviceController {
	return &DeviceController{
		registry:    registry,
		aggregation: aggregation,
		logger:      logger,
	}
}

// RegisterRoutes registers the device routes with Gin
func (c *DeviceController) RegisterRoutes(router *gin.Engine) {
	router.GET("/device_motherson/:siteName/:device_id", c.GetDevice)
	router.POST("/device_motherson", c.UpsertSite)
	router.POST("/get-device-events", c.GetDeviceEvents)
	router.GET("/sites/:site_name", c.GetSite)
}

func (c *DeviceController) GetDevice(ctx *gin.Context) {
	device, err := c.registry.GetDevice(ctx.Request.Context(), ctx.Param("siteName"), ctx.Param("device_id"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.MessageResponse{Message: "Device found", Data: device})
}

func (c *DeviceController) GetSite(ctx *gin.Context) {
	site, err := c.registry.GetSite(ctx.Request.Context(), ctx.Param("site_name"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, site)
}

func (c *DeviceController) UpsertSite(ctx *gin.Context) {
	var req api_models.UpsertSiteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, apperrors.CodeInvalidPayload, "Invalid request body")
		return
	}

	devices, err := decodeDevices(req.Devices)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	site, created, err := c.registry.UpsertSite(ctx.Request.Context(), req.SiteName, devices)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	if created {
		ctx.JSON(http.StatusCreated, api_models.MessageResponse{Message: "Data saved successfully", Data: site})
		return
	}
	ctx.JSON(http.StatusOK, api_models.MessageResponse{Message: "Devices updated successfully", Data: site})
}

func (c *DeviceController) GetDeviceEvents(ctx *gin.Context) {
	var req api_models.DeviceEventsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, apperrors.CodeMissingSiteName, "Missing required parameter: siteName")
		return
	}

	entries, err := c.aggregation.DevicesWithLatestEvents(ctx.Request.Context(), req.SiteName)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.MessageResponse{
		Message: "Devices with latest events fetched successfully",
		Data:    entries,
	})
}

// decodeDevices returns nil for an absent or null Devices value and an error
// for anything that is not an array of devices.
func decodeDevices(raw json.RawMessage) ([]mqtmodels.Device, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	devices := []mqtmodels.Device{}
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, apperrors.InvalidRequest(apperrors.CodeInvalidDevices, "Devices array is required")
	}
	return devices, nil
}
