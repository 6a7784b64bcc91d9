package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	drafts "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/drafts"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// DraftController handles staged device registration
type DraftController struct {
	drafts *drafts.Service
	logger *logger.Logger
}

// NewDraftController creates a new draft controller
func NewDraftController(drafts *drafts.Service, logger *logger.Logger) *DraftController {
	return &DraftController{
		drafts: drafts,
		logger: logger,
	}
}

// RegisterRoutes registers the draft routes with Gin
func (c *DraftController) RegisterRoutes(router *gin.Engine) {
	draftsGroup := router.Group("/drafts")
	{
		draftsGroup.POST("", c.CreateDraft)
		draftsGroup.GET("/:id", c.GetDraft)
		draftsGroup.DELETE("/:id", c.DiscardDraft)
		draftsGroup.PUT("/:id/modules", c.AddModule)
		draftsGroup.POST("/:id/submit", c.SubmitDraft)
	}
}

func (c *DraftController) CreateDraft(ctx *gin.Context) {
	var req api_models.CreateDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, apperrors.CodeMissingSiteName, "siteName is required")
		return
	}

	draft, err := c.drafts.Create(ctx.Request.Context(), req.SiteName)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusCreated, draft)
}

func (c *DraftController) GetDraft(ctx *gin.Context) {
	draft, err := c.drafts.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, draft)
}

func (c *DraftController) DiscardDraft(ctx *gin.Context) {
	if err := c.drafts.Discard(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *DraftController) AddModule(ctx *gin.Context) {
	var module mqtmodels.DraftModule
	if err := ctx.ShouldBindJSON(&module); err != nil {
		badRequest(ctx, apperrors.CodeInvalidPayload, "Invalid request body")
		return
	}

	draft, err := c.drafts.AddModule(ctx.Request.Context(), ctx.Param("id"), module)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, draft)
}

func (c *DraftController) SubmitDraft(ctx *gin.Context) {
	site, created, err := c.drafts.Submit(ctx.Request.Context(), ctx.Param("id"))
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
