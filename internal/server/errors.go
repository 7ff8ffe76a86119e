package server

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/db"
	"github.com/balkashynov/tasktime/internal/log"
)

// writeError renders err as an ErrorResponse with the status for its kind.
// Internal errors never expose their message.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp := api.ErrorResponse{
		Code:      kind.String(),
		Message:   publicMessage(kind, err),
		RequestID: c.GetString(ctxRequestID),
	}

	var conflict *db.ConflictError
	if errors.As(err, &conflict) {
		resp.ActiveSession = conflict.Active
	}

	if kind == apperr.KindInternal {
		log.ErrorErr(log.CatHTTP, "request failed", err,
			"path", c.Request.URL.Path, "request_id", resp.RequestID)
	}

	c.JSON(apperr.HTTPStatus(kind), resp)
}

func publicMessage(kind apperr.Kind, err error) string {
	if kind == apperr.KindInternal {
		return "internal error"
	}
	var classified *apperr.Error
	if errors.As(err, &classified) {
		return classified.Message
	}
	return err.Error()
}
