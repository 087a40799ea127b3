package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeTooManyCalls  = 429
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码，与 economy 包的错误一一对应
const (
	CodeInsufficientFunds  = 1001
	CodeInsufficientPoints = 1002
	CodeBelowMinimumStake  = 1003
	CodeAboveMaximumStake  = 1004
	CodeStillLocked        = 1005
	CodeTierNotMet         = 1006
	CodeOutOfStock         = 1007
	CodeLimitReached       = 1008
	CodeAccountNotFound    = 1009
	CodePoolNotFound       = 1010
	CodeItemNotFound       = 1011
	CodeStakeNotFound      = 1012
	CodeStakeClosed        = 1013
	CodeUnknownSource      = 1014
	CodeUnknownAction      = 1015
	CodeInvalidAmount      = 1016
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
