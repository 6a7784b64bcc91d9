package controllers

import (
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/middleware"
	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// respondError writes err as {code, message[, error]} with the status of its kind
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	resp := api_models.ErrorResponse{Code: apperrors.CodeOf(err)}

	appErr, ok := apperrors.As(err)
	switch {
	case !ok:
		resp.Message = "Internal server error"
		resp.Error = err.Error()
		middleware.GetLoggerFromGinContext(ctx, log).ErrorWithError(err, "unhandled error")
	case appErr.Kind == apperrors.KindInternal:
		resp.Message = appErr.Message
		if appErr.Err != nil {
			resp.Error = appErr.Err.Error()
		}
	default:
		resp.Message = appErr.Message
	}

	ctx.JSON(apperrors.HTTPStatus(err), resp)
}

func badRequest(ctx *gin.Context, code, message string) {
	ctx.JSON(apperrors.HTTPStatus(apperrors.InvalidRequest(code, message)), api_models.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
