package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

// CustomErrorHandler maps service and repository errors to JSON error
// responses. Lock timeouts are flagged retryable; everything unknown is a
// plain 500 without internals leaking out.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."
	retryable := false

	var httpErr *echo.HTTPError
	var transitionErr *models.InvalidTransitionError

	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.As(err, &transitionErr):
		code = http.StatusConflict
		message = transitionErr.Error()
	case errors.Is(err, services.ErrLockTimeout):
		code = http.StatusServiceUnavailable
		message = "Payment is busy, please retry in a moment."
		retryable = true
	case errors.Is(err, services.ErrPriceMismatch):
		code = http.StatusConflict
		message = "Invoice could not be generated, please contact the board."
	case errors.Is(err, services.ErrSourceConsumed):
		code = http.StatusConflict
		message = "This payment was already used. Start a new one."
	case errors.Is(err, services.ErrSourceNotFound):
		code = http.StatusNotFound
		message = "No payment in progress. Pick a bank first."
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		code = http.StatusConflict
		message = "You are already enrolled for this activity."
	case errors.Is(err, services.ErrEnrollmentClosed):
		code = http.StatusForbidden
		message = "Enrollment for this activity is closed."
	case errors.Is(err, services.ErrActivityFull):
		code = http.StatusConflict
		message = "This activity is full."
	case errors.Is(err, services.ErrBadTransferSecret):
		code = http.StatusForbidden
		message = "Invalid transfer link."
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = http.StatusNotFound
		message = "Not found."
	}

	c.Logger().Error(err)

	body := map[string]interface{}{"error": message}
	if retryable {
		body["retryable"] = true
	}

	if err := c.JSON(code, body); err != nil {
		c.Logger().Error(err)
	}
}
