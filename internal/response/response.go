package response

import (
	"net/http"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Success writes {status:"success", message} merged with data.
func Success(c *gin.Context, message string, data gin.H) {
	body := gin.H{"status": StatusSuccess, "message": message}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Body{Status: StatusError, Message: message, Code: apperror.CodeInvalidInput})
}

// Error writes a business failure. Missing notes are a client error (400); every other
// failure keeps HTTP 200 with status "error" so existing admin clients can branch on the body.
func Error(c *gin.Context, err error, log logger.ZapLogger) {
	appErr := apperror.FromError(err)
	logFailure(c, appErr, log)

	status := http.StatusOK
	if appErr.Code == apperror.CodeNoteRequired {
		status = http.StatusBadRequest
	}
	c.JSON(status, Body{Status: StatusError, Message: appErr.Message, Code: code(appErr)})
}

// QueryError writes a read-side failure using plain HTTP status codes.
func QueryError(c *gin.Context, err error, log logger.ZapLogger) {
	appErr := apperror.FromError(err)
	logFailure(c, appErr, log)

	c.JSON(httpStatus(appErr.Kind), Body{Status: StatusError, Message: appErr.Message, Code: code(appErr)})
}

func httpStatus(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalidState:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func code(e *apperror.Error) string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func logFailure(c *gin.Context, e *apperror.Error, log logger.ZapLogger) {
	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("kind", e.Kind.String()),
		zap.String("code", e.Code),
	}
	if e.Kind == apperror.KindInternal {
		log.Error(e.Message, append(fields, zap.Error(e.Err))...)
		return
	}
	log.Warn(e.Message, fields...)
}
