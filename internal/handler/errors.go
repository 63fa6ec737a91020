package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"receivables/internal/service"
	"receivables/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps domain error kinds to HTTP status codes. Anything else is an
// infrastructure failure: it is logged and reported without internal detail.
func respondError(c *gin.Context, err error) {
	var domainErr *service.Error
	if !errors.As(err, &domainErr) {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindAuthentication:
		status = http.StatusUnauthorized
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	}
	c.JSON(status, response.Error(status, domainErr.Error()))
}

// bindJSON binds the request body into dst. An empty body leaves dst untouched so
// the service reports the missing fields by name.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}
