package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/log"
)

// rateLimit aborts the request when the operations limiter has no token
// available. The limit is shared by every caller.
func (a *API) rateLimit(c *gin.Context) {
	if a.limiter.Allow() {
		c.Next()
		return
	}
	log.Debugw("HTTP API rate limited", "path", c.Request.URL.Path, "ip", c.ClientIP())
	c.AbortWithStatusJSON(http.StatusTooManyRequests, apitypes.ErrorResponse{
		Message: ErrTooManyRequests,
		Code:    uint(ErrTooManyRequestsCode),
		Type:    string(ErrTooManyRequestsType),
	})
}
