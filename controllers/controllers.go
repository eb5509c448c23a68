package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parkeaya/parking-app/services"
	"github.com/parkeaya/parking-app/utils"
)

// ErrNoPermission is returned on role/capability failures.
var ErrNoPermission = &CustomError{"You do not have permission"}

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

// actorFromContext reads the authenticated caller set by AuthMiddleware.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userIDValue, exists := c.Get("user_id")
	if !exists {
		return services.Actor{}, false
	}
	userID, ok := userIDValue.(uint)
	if !ok {
		return services.Actor{}, false
	}

	role, _ := c.Get("role")
	roleStr, _ := role.(string)

	return services.Actor{UserID: userID, Role: roleStr}, true
}

func paramUint(c *gin.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return uint(value), nil
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognized is logged and surfaced generically.
func respondServiceError(c *gin.Context, err error) {
	if fields, ok := services.AsFieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, utils.JSONResponse{
			Status:  false,
			Message: "Validation failed",
			Errors:  fields,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrLotUnavailable),
		errors.Is(err, services.ErrNoCapacity),
		errors.Is(err, services.ErrVehicleConflict):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrRefundWindowExpired),
		errors.Is(err, services.ErrCheckInWindow),
		errors.Is(err, services.ErrTicketWindow):
		utils.RespondError(c, http.StatusBadRequest, err)
	default:
		utils.ErrorLogger.Printf("Unexpected error on %s %s: %v",
			c.Request.Method, c.Request.URL.Path, err)
		utils.RespondError(c, http.StatusInternalServerError,
			errors.New("internal server error"))
	}
}
