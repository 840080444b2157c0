package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

func errorResponse(err error, code apiErrorCode, typ apiErrorType) apitypes.ErrorResponse {
	return apitypes.ErrorResponse{
		Message: err.Error(),
		Code:    uint(code),
		Type:    string(typ),
	}
}

func retSQLErr(err error, c *gin.Context) {
	log.Warnw("HTTP API SQL request error", "err", err)
	unwrapErr := tracerr.Unwrap(err)
	if unwrapErr == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, errorResponse(unwrapErr, ErrNotFoundCode, ErrNotFoundType))
	} else if strings.Contains(unwrapErr.Error(), errCtxTimeout) {
		c.JSON(http.StatusServiceUnavailable, apitypes.ErrorResponse{
			Message: ErrSQLTimeout,
			Code:    uint(ErrSQLTimeoutCode),
			Type:    string(ErrSQLTimeoutType),
		})
	} else {
		c.JSON(http.StatusInternalServerError, errorResponse(unwrapErr, ErrInternalCode, ErrInternalType))
	}
}

// retStateErr answers a failed StateDB read
func retStateErr(err error, c *gin.Context) {
	unwrapErr := tracerr.Unwrap(err)
	if unwrapErr == common.ErrAccountNotFound {
		c.JSON(http.StatusNotFound, errorResponse(unwrapErr, ErrNotFoundCode, ErrNotFoundType))
		return
	}
	log.Warnw("HTTP API StateDB request error", "err", err)
	c.JSON(http.StatusInternalServerError, errorResponse(unwrapErr, ErrInternalCode, ErrInternalType))
}

func retBadReq(err *apiError, c *gin.Context) {
	log.Warnw("HTTP API Bad request error", "err", err)
	c.JSON(http.StatusBadRequest, errorResponse(tracerr.Unwrap(err.Err), err.Code, err.Type))
}

func paramErr(err error) *apiError {
	return &apiError{
		Err:  err,
		Code: ErrParamValidationFailedCode,
		Type: ErrParamValidationFailedType,
	}
}
