package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/middleware"
	"github.com/noah-isme/campus-timetable-api/internal/models"
)

// RegisterTimetableRoutes mounts the timetable API behind the supplied authentication middleware.
// Directors never reach timetable data; mutations are reserved for registrars.
func RegisterTimetableRoutes(group *gin.RouterGroup, h *TimetableHandler, auth gin.HandlerFunc) {
	timetable := group.Group("/timetable", auth, middleware.DenyRoles(models.RoleDirector))
	registrar := middleware.RequireRoles(models.RoleRegistrar)

	timetable.GET("/reference", h.Reference)
	timetable.POST("/validate", registrar, h.ValidateScope)
	timetable.GET("/me", middleware.RequireRoles(models.RoleLecturer, models.RoleRegistrar, models.RolePrincipal), h.LecturerTimetable)

	runs := timetable.Group("/runs")
	runs.GET("", h.ListRuns)
	runs.POST("", registrar, h.Generate)
	runs.GET("/:id", h.GetRun)
	runs.DELETE("/:id", registrar, h.DeleteRun)
	runs.POST("/:id/generate", registrar, h.Regenerate)
	runs.POST("/:id/validate", registrar, h.ValidateRun)
	runs.POST("/:id/publish", registrar, h.Publish)
	runs.GET("/:id/entries", h.Entries)
	runs.GET("/:id/grid", h.Grid)

	timetable.PATCH("/entries/:id", registrar, h.EditEntry)
}
