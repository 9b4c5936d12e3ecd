package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

type PaymentHandler struct {
	enrollments *repository.EnrollmentRepository
	activities  *repository.ActivityRepository
	service     *services.EnrollmentService
	invoices    *services.InvoiceService
	sources     *services.SourceService
}

func NewPaymentHandler(enrollments *repository.EnrollmentRepository, activities *repository.ActivityRepository, service *services.EnrollmentService, invoices *services.InvoiceService, sources *services.SourceService) *PaymentHandler {
	return &PaymentHandler{
		enrollments: enrollments,
		activities:  activities,
		service:     service,
		invoices:    invoices,
		sources:     sources,
	}
}

// StartPayment begins or resumes payment for the user's enrollment. With a
// bank in the payload a redirect to the bank is returned; a still-pending
// source for the same bank is reused instead of minting a new one.
func (h *PaymentHandler) StartPayment(c echo.Context) error {
	enrollment, err := h.activeEnrollment(c)
	if err != nil {
		return err
	}
	if !enrollment.RequiresPayment() {
		return echo.NewHTTPError(http.StatusBadRequest, "this enrollment requires no payment")
	}
	if enrollment.State == models.StatePaid {
		return echo.NewHTTPError(http.StatusConflict, "this enrollment is already paid")
	}

	var payload struct {
		Bank string `json:"bank"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ctx := c.Request().Context()
	source, err := h.sources.Source(ctx, enrollment, payload.Bank)
	if err != nil {
		return err
	}

	// Redirects carry a bank session for this user only.
	if redirect := h.sources.SourceRedirect(source); redirect != "" {
		c.Response().Header().Set("Cache-Control", "private, no-store")
		return c.JSON(http.StatusOK, map[string]string{
			"status":       "redirect",
			"redirect_url": redirect,
		})
	}

	return h.settle(c, enrollment, source)
}

// PaymentReturn is the callback target the payer lands on after the bank
// redirect flow. It settles the invoice when the source became chargeable.
func (h *PaymentHandler) PaymentReturn(c echo.Context) error {
	enrollment, err := h.activeEnrollment(c)
	if err != nil {
		return err
	}
	if enrollment.State == models.StatePaid {
		return c.JSON(http.StatusOK, map[string]string{"status": "paid"})
	}

	source, err := h.sources.Source(c.Request().Context(), enrollment, "")
	if err != nil {
		return err
	}

	switch source.Status {
	case stripe.SourceStatusChargeable:
		return h.settle(c, enrollment, source)
	case stripe.SourceStatusPending:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "pending"})
	default:
		return c.JSON(http.StatusOK, map[string]string{
			"status": string(source.Status),
		})
	}
}

func (h *PaymentHandler) settle(c echo.Context, enrollment *models.Enrollment, source *stripe.Source) error {
	ctx := c.Request().Context()

	invoice, err := h.invoices.PayInvoice(ctx, enrollment, source)
	if err != nil {
		return err
	}

	if err := h.service.MarkPaid(ctx, enrollment, invoice, source.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "paid",
		"invoice": invoice.ID,
		"amount":  invoice.AmountDue,
	})
}

func (h *PaymentHandler) activeEnrollment(c echo.Context) (*models.Enrollment, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid activity id")
	}

	enrollment, err := h.enrollments.FindActive(user.ID, uint(id))
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no active enrollment for this activity")
	}
	return enrollment, nil
}
