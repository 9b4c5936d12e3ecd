package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

type EnrollmentHandler struct {
	enrollments *repository.EnrollmentRepository
	activities  *repository.ActivityRepository
	service     *services.EnrollmentService
	cache       *services.RedisCache
}

func NewEnrollmentHandler(enrollments *repository.EnrollmentRepository, activities *repository.ActivityRepository, service *services.EnrollmentService, cache *services.RedisCache) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		activities:  activities,
		service:     service,
		cache:       cache,
	}
}

// enrollmentView is what the API exposes of an enrollment.
type enrollmentView struct {
	ID          string                  `json:"id"`
	State       models.EnrollmentState  `json:"state"`
	Price       *int64                  `json:"price"`
	TotalPrice  *int64                  `json:"total_price"`
	NeedsForm   bool                    `json:"needs_form"`
	NeedsPay    bool                    `json:"needs_payment"`
	WantedState *models.EnrollmentState `json:"wanted_state,omitempty"`
}

func viewOf(enrollment *models.Enrollment) enrollmentView {
	return enrollmentView{
		ID:          enrollment.ID,
		State:       enrollment.State,
		Price:       enrollment.Price,
		TotalPrice:  enrollment.TotalPrice,
		NeedsForm:   enrollment.State == models.StateSeeded && !enrollment.FormFilled(),
		NeedsPay:    enrollment.RequiresPayment() && enrollment.State != models.StatePaid,
		WantedState: enrollment.WantedState(),
	}
}

// Enroll registers the current user for the activity.
func (h *EnrollmentHandler) Enroll(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	activity, err := h.loadActivity(c)
	if err != nil {
		return err
	}

	enrollment, err := h.service.Enroll(c.Request().Context(), user, activity)
	if err != nil {
		return err
	}

	h.invalidateActivity(c, activity.ID)
	return c.JSON(http.StatusCreated, viewOf(enrollment))
}

// ShowEnrollment returns the current user's active enrollment.
func (h *EnrollmentHandler) ShowEnrollment(c echo.Context) error {
	enrollment, err := h.activeEnrollment(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(enrollment))
}

// SubmitForm captures the activity form values onto the enrollment.
func (h *EnrollmentHandler) SubmitForm(c echo.Context) error {
	enrollment, err := h.activeEnrollment(c)
	if err != nil {
		return err
	}

	var values map[string]interface{}
	if err := c.Bind(&values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form payload")
	}

	if err := h.service.SubmitForm(c.Request().Context(), enrollment, values); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(enrollment))
}

// CancelEnrollment cancels the current user's active enrollment.
func (h *EnrollmentHandler) CancelEnrollment(c echo.Context) error {
	enrollment, err := h.activeEnrollment(c)
	if err != nil {
		return err
	}

	if err := h.service.Cancel(c.Request().Context(), enrollment, "cancelled by user"); err != nil {
		return err
	}

	h.invalidateActivity(c, enrollment.ActivityID)
	return c.JSON(http.StatusOK, viewOf(enrollment))
}

// TransferEnrollment claims an enrollment with its transfer secret.
func (h *EnrollmentHandler) TransferEnrollment(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	enrollment, err := h.enrollments.FindByID(c.Param("id"))
	if err != nil {
		return err
	}

	var payload struct {
		Secret string `json:"secret"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.service.Transfer(c.Request().Context(), enrollment, payload.Secret, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(enrollment))
}

// invalidateActivity drops the cached activity view after its seat count
// changed. Best-effort; the TTL covers a missed delete.
func (h *EnrollmentHandler) invalidateActivity(c echo.Context, activityID uint) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(c.Request().Context(), activityCacheKey(activityID)); err != nil {
		c.Logger().Warnf("Failed to invalidate activity %d cache: %v", activityID, err)
	}
}

func (h *EnrollmentHandler) loadActivity(c echo.Context) (*models.Activity, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid activity id")
	}
	return h.activities.FindByID(uint(id))
}

func (h *EnrollmentHandler) activeEnrollment(c echo.Context) (*models.Enrollment, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	activity, err := h.loadActivity(c)
	if err != nil {
		return nil, err
	}

	enrollment, err := h.enrollments.FindActive(user.ID, activity.ID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no active enrollment for this activity")
	}
	return enrollment, nil
}
