// Package gin serves the merchant backend intent endpoint with Gin.
// This package is a thin adapter that translates gin.Context to the stdlib
// request body and delegates decoding, validation and intent creation to the
// http package.
package gin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	httpps "github.com/mark3labs/paymentsheet-go/http"
)

// NewIntentHandler returns a Gin handler for the intent endpoint.
//
// The handler:
//   - Decodes and validates the CreateIntentRequest body
//   - Creates the intent through the http.Handler's IntentCreator
//   - Answers 200 with the client secret, or aborts with the error body
//   - Stores the created intent in the Gin context under "paymentsheet_intent"
//
// Example usage:
//
//	r := gin.Default()
//	Register(r, httpps.NewHandler(creator))
func NewIntentHandler(handler *httpps.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := httpps.WithClientInfo(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		status, body := handler.CreateIntent(ctx, c.Request.Body)
		if status >= http.StatusBadRequest {
			slog.Default().Warn("intent request failed", "status", status, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set("paymentsheet_intent", body)
		c.JSON(status, body)
	}
}

// Register adds the intent endpoint to r. It works with engines and groups.
func Register(r gin.IRoutes, handler *httpps.Handler) {
	r.POST(httpps.IntentsPath, NewIntentHandler(handler))
}
