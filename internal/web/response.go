package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"research-rag/internal/ingest"
	"research-rag/internal/rag"
)

const (
	CodeOK             = 0
	CodeBadRequest     = 40000
	CodeEmptyLibrary   = 40901
	CodeNoDocuments    = 40902
	CodeNoContext      = 40401
	CodeInternalServer = 50000
	CodeLLM            = 50201
	CodeTimeout        = 50401
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Fail maps err onto an HTTP status and API code.
func Fail(c *gin.Context, err error) {
	status, code := classify(err)
	Error(c, status, code, err.Error())
}

func classify(err error) (int, int) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuery):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, rag.ErrEmptyLibrary):
		return http.StatusConflict, CodeEmptyLibrary
	case errors.Is(err, ingest.ErrNoDocuments):
		return http.StatusConflict, CodeNoDocuments
	case errors.Is(err, rag.ErrNoContext):
		return http.StatusNotFound, CodeNoContext
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, rag.ErrLLM):
		return http.StatusBadGateway, CodeLLM
	}
	return http.StatusInternalServerError, CodeInternalServer
}
