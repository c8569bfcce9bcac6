// Package response 统一 HTTP JSON 响应格式
package response

import (
	"github.com/gin-gonic/gin"
)

// Success 返回业务数据
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// ErrorWithStatus 返回 {"error": code, "message": msg}，details 中的字段会合并到响应体
func ErrorWithStatus(c *gin.Context, status int, code, msg string, details ...gin.H) {
	body := gin.H{
		"error":   code,
		"message": msg,
	}
	for _, d := range details {
		for k, v := range d {
			body[k] = v
		}
	}
	c.AbortWithStatusJSON(status, body)
}
