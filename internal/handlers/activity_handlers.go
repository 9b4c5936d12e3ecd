package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

// activityCacheTTL bounds how stale a cached activity view may get; seat
// counts change on every enroll, so writes also invalidate explicitly.
const activityCacheTTL = time.Minute

func activityCacheKey(id uint) string {
	return fmt.Sprintf("activity.%d", id)
}

// activityView is the cached detail payload.
type activityView struct {
	Activity   *models.Activity `json:"activity"`
	SeatsTaken int64            `json:"seats_taken"`
}

type ActivityHandler struct {
	activities *repository.ActivityRepository
	cache      *services.RedisCache
}

func NewActivityHandler(activities *repository.ActivityRepository, cache *services.RedisCache) *ActivityHandler {
	return &ActivityHandler{activities: activities, cache: cache}
}

// ListActivities returns all activities, newest first.
func (h *ActivityHandler) ListActivities(c echo.Context) error {
	activities, err := h.activities.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activities)
}

// ShowActivity returns one activity with its seat availability.
func (h *ActivityHandler) ShowActivity(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid activity id")
	}

	if h.cache != nil {
		var cached activityView
		if err := h.cache.Get(c.Request().Context(), activityCacheKey(uint(id)), &cached); err == nil {
			return c.JSON(http.StatusOK, cached)
		}
	}

	activity, err := h.activities.FindByID(uint(id))
	if err != nil {
		return err
	}
	return h.respondActivity(c, activity)
}

// ShowActivityBySlug resolves an activity by its URL slug.
func (h *ActivityHandler) ShowActivityBySlug(c echo.Context) error {
	activity, err := h.activities.FindBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	return h.respondActivity(c, activity)
}

func (h *ActivityHandler) respondActivity(c echo.Context, activity *models.Activity) error {
	taken, err := h.activities.CountActive(activity.ID)
	if err != nil {
		return err
	}

	view := activityView{Activity: activity, SeatsTaken: taken}
	if h.cache != nil {
		// Best-effort; a cache write failure never fails the request.
		if err := h.cache.Set(c.Request().Context(), activityCacheKey(activity.ID), view, activityCacheTTL); err != nil {
			c.Logger().Warnf("Failed to cache activity %d: %v", activity.ID, err)
		}
	}
	return c.JSON(http.StatusOK, view)
}

// currentUser returns the authenticated user placed by the auth middleware.
func currentUser(c echo.Context) (*models.User, error) {
	user, ok := c.Get("user").(*models.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return user, nil
}
