package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

// ErrorEnvelope is the failure contract consumed by the credit client.
type ErrorEnvelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Error   *appErrors.Error `json:"error"`
}

// JSON sends {"success": true} merged with the payload fields and optional metadata.
func JSON(c *gin.Context, status int, payload gin.H, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	if len(meta) > 0 && len(meta[0]) > 0 {
		body["meta"] = meta[0]
	}
	c.JSON(status, body)
}

// OK responds with HTTP 200.
func OK(c *gin.Context, payload gin.H, meta ...map[string]interface{}) {
	JSON(c, http.StatusOK, payload, meta...)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, ErrorEnvelope{Success: false, Message: appErr.Message, Error: appErr})
}

// Attachment streams a generated file to the client.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
