package handlers

import (
	"errors"
	"net/http"

	"github.com/AtRiskMedia/kendr-go/internal/application/services"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/editor"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/library"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/restclient"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound), editor.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, library.ErrDuplicateName), errors.Is(err, repositories.ErrConflict),
		errors.Is(err, editor.ErrDragActive), errors.Is(err, editor.ErrNoDrag):
		return http.StatusConflict
	case errors.Is(err, editor.ErrProtectedBlock):
		return http.StatusForbidden
	case errors.Is(err, library.ErrEmptyName), errors.Is(err, library.ErrEmptyBlock),
		errors.Is(err, services.ErrEmptySiteName), errors.Is(err, services.ErrInvalidDocument),
		errors.Is(err, services.ErrInvalidSurface), errors.Is(err, editor.ErrInvalidSurface),
		errors.Is(err, editor.ErrReservedField), errors.Is(err, blocks.ErrUnknownType):
		return http.StatusBadRequest
	}
	if apiErr := restclient.AsAPIError(err); apiErr != nil {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
