package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/app"
	"ragweaver/internal/pkg/logging"
)

type ErrorBody struct {
	Error string `json:"error"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Error: message})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with the status of its kind. Server-side failures are
// logged and their message is prefixed with fallback.
func FromError(c *gin.Context, err error, fallback string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).WithError(err).Error(fallback)
		Error(c, status, fallback+": "+err.Error())
		return
	}
	Error(c, status, err.Error())
}
