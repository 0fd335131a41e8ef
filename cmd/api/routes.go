package main

import (
	"cally-platform/internal/auth"
	"cally-platform/internal/httpapi"
	"cally-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// Identity extraction via context, useful for client debugging.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			tid, _ := auth.TenantID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "tenant_id": tid, "role": role})
		})

		// CALENDAR routes. Assistants and agents can read and book;
		// super_admin bypasses the role check.
		cal := v1.Group("/calendar")
		cal.Use(rbac.RequireTenant())
		cal.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAssistant, rbac.RoleAgent))
		{
			cal.GET("", h.ListCalendar)
		}

		// EVENT routes (appointment mutations).
		events := v1.Group("/events")
		events.Use(rbac.RequireTenant())
		events.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAssistant, rbac.RoleAgent))
		{
			events.POST("", h.CreateEvent)
			events.PATCH("/:event_id", h.UpdateEvent)
			events.POST("/:event_id/cancel", h.CancelEvent)
		}
	}
}
