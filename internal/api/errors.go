package api

import (
	"net/http"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler renders every error as {"error": "..."}. Caller mistakes are
// 400, upstream failures 500 with the detail kept in the logs.
func ErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		if stdErr, ok := apperrors.AsStandardError(err); ok {
			status = apperrors.HTTPStatus(stdErr.Code)
			message = stdErr.Message
			if stdErr.Details != "" && status < http.StatusInternalServerError {
				message = stdErr.Message + ": " + stdErr.Details
			}
			fields := map[string]interface{}{
				"path":   c.Path(),
				"code":   stdErr.Code,
				"status": status,
				"error":  err.Error(),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request failed", fields)
			} else {
				log.Debug("request rejected", fields)
			}
		} else if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			log.Error("unhandled error", map[string]interface{}{
				"path":  c.Path(),
				"error": err.Error(),
			})
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorResponse{Error: message})
		}
		if err != nil {
			log.Error("failed to write error response", map[string]interface{}{"error": err.Error()})
		}
	}
}
