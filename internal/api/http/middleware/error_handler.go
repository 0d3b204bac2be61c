package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apitypes "github.com/weisyn/esg-registry/internal/api/types"
)

// ErrorHandler 把 handler 通过 c.Error 记录的错误转换为 Problem Details
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		problem, ok := apitypes.IsProblemDetails(err)
		if !ok {
			problem = apitypes.NewProblemDetails(
				apitypes.CodeInternalError,
				apitypes.LayerRegistryAPI,
				"服务器内部错误，请稍后重试",
				fmt.Sprintf("internal error: %v", err),
				http.StatusInternalServerError,
				nil,
			)
		}
		problem.Instance = c.Request.URL.Path
		if id := GetRequestID(c); id != "" {
			problem.TraceID = id
		}

		logger.Error("HTTP error",
			zap.String("code", problem.Code),
			zap.String("trace_id", problem.TraceID),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		problem.WriteJSON(c.Writer)
		c.Abort()
	}
}

// WriteProblemDetails 写入 Problem Details 响应
func WriteProblemDetails(c *gin.Context, problem *apitypes.ProblemDetails) {
	problem.Instance = c.Request.URL.Path
	if id := GetRequestID(c); id != "" {
		problem.TraceID = id
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problem.Status, problem)
}

// WriteError 写入错误响应
func WriteError(c *gin.Context, code string, userMessage string, detail string, status int, details map[string]interface{}) {
	WriteProblemDetails(c, apitypes.NewProblemDetails(
		code,
		apitypes.LayerRegistryAPI,
		userMessage,
		detail,
		status,
		details,
	))
}
