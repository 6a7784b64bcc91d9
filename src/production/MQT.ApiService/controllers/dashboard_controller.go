package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	dashboard "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/dashboard"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
)

// DashboardController serves the machine-status board
type DashboardController struct {
	dashboard *dashboard.Service
	logger    *logger.Logger
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(dashboard *dashboard.Service, logger *logger.Logger) *DashboardController {
	return &DashboardController{
		dashboard: dashboard,
		logger:    logger,
	}
}

// RegisterRoutes registers the dashboard routes with Gin
func (c *DashboardController) RegisterRoutes(router *gin.Engine) {
	board := router.Group("/dashboard/:site_name")
	{
		board.GET("", c.GetBoard)
		board.GET("/ws", c.StreamBoard)
		board.GET("/export.xlsx", c.exportHandler(dashboard.FormatXLSX))
		board.GET("/export.pdf", c.exportHandler(dashboard.FormatPDF))
	}
}

func (c *DashboardController) GetBoard(ctx *gin.Context) {
	board, err := c.dashboard.Board(ctx.Request.Context(), ctx.Param("site_name"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, board)
}

func (c *DashboardController) StreamBoard(ctx *gin.Context) {
	if err := c.dashboard.ServeStream(ctx.Writer, ctx.Request, ctx.Param("site_name")); err != nil {
		// Upgrade has already written the handshake error
		c.logger.WithError(err).Debug("board stream upgrade failed")
	}
}

func (c *DashboardController) exportHandler(format string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		siteName := ctx.Param("site_name")
		data, err := c.dashboard.Export(ctx.Request.Context(), siteName, format)
		if err != nil {
			respondError(ctx, c.logger, err)
			return
		}

		ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-board.%s", siteName, format)))
		ctx.Data(http.StatusOK, dashboard.ContentType(format), data)
	}
}
