package httpapi

import (
	"errors"
	"net/http"
	"time"

	"cally-platform/internal/auth"
	"cally-platform/internal/calendar"
	"cally-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Calendar *calendar.Service

	// DefaultTimezone backs requests that omit an explicit zone.
	DefaultTimezone string
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calendar ---

// ListCalendar returns the merged calendar view for a local date range.
// GET /v1/calendar?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD&timezone=ZONE
func (h Handlers) ListCalendar(c *gin.Context) {
	if h.Calendar == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calendar not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" || endDate == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date required"})
		return
	}

	items, err := h.Calendar.ListRange(c.Request.Context(), tenantID, h.timezone(c), startDate, endDate)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": items})
}

// CreateEvent books a single appointment, or a recurring series when the
// body carries a recurrence rule.
func (h Handlers) CreateEvent(c *gin.Context) {
	if h.Calendar == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calendar not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var in calendar.CreateEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if in.Timezone == "" {
		in.Timezone = h.DefaultTimezone
	}

	if in.Recurrence != nil {
		res, err := h.Calendar.CreateRecurring(c.Request.Context(), tenantID, in)
		if err != nil {
			abortServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
		return
	}

	ev, err := h.Calendar.CreateEvent(c.Request.Context(), tenantID, in)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// UpdateEvent applies a partial update.
// PATCH /v1/events/:event_id?date=YYYY-MM-DD&timezone=ZONE
func (h Handlers) UpdateEvent(c *gin.Context) {
	if h.Calendar == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calendar not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	eventID := c.Param("event_id")
	if eventID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
		return
	}

	var upd calendar.EventUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ev, err := h.Calendar.Update(c.Request.Context(), tenantID, h.timezone(c), c.Query("date"), eventID, upd)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// CancelEvent soft-deletes via status transition.
// POST /v1/events/:event_id/cancel?date=YYYY-MM-DD&timezone=ZONE
func (h Handlers) CancelEvent(c *gin.Context) {
	if h.Calendar == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calendar not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	eventID := c.Param("event_id")
	if eventID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
		return
	}

	ev, err := h.Calendar.Cancel(c.Request.Context(), tenantID, h.timezone(c), c.Query("date"), eventID)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h Handlers) timezone(c *gin.Context) string {
	if tz := c.Query("timezone"); tz != "" {
		return tz
	}
	return h.DefaultTimezone
}

func abortServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calendar.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calendar.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Convenience middleware bundles.

func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
