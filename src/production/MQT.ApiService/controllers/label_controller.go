package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	labels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/labels"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// LabelController serves the label catalog used by the admin form
type LabelController struct {
	catalog *labels.Catalog
}

// NewLabelController creates a new label controller
func NewLabelController(catalog *labels.Catalog) *LabelController {
	return &LabelController{catalog: catalog}
}

// RegisterRoutes registers the label routes with Gin
func (c *LabelController) RegisterRoutes(router *gin.Engine) {
	router.GET("/labels", c.ListLabels)
}

func (c *LabelController) ListLabels(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, api_models.LabelsResponse{Labels: c.catalog.Labels()})
}
