package http

import "github.com/gin-gonic/gin"

// Envelope 是所有 HTTP 响应的统一格式
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: code, Message: message})
}

func SuccessResponse(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Envelope{Status: code, Message: message, Data: data})
}
