package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under /api/v1.
type Handlers struct {
	Auth        *AuthHandler
	Mentees     *MenteeHandler
	Mentors     *MentorHandler
	Assignments *AssignmentHandler
	Activities  *ActivityHandler
	Portal      *PortalHandler
}

// RegisterRoutes mounts the API under prefix. tokens validates bearer tokens for protected groups.
func RegisterRoutes(router gin.IRouter, prefix string, h Handlers, tokens middleware.TokenValidator) {
	if prefix == "" {
		prefix = "/api/v1"
	}
	v1 := router.Group(prefix)

	auth := v1.Group("/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", middleware.JWT(tokens), h.Auth.Me)
	}

	secured := v1.Group("")
	secured.Use(middleware.JWT(tokens))

	head := secured.Group("")
	head.Use(middleware.RequireRoles(models.RoleHead))
	{
		mentees := head.Group("/mentees")
		mentees.GET("", h.Mentees.List)
		mentees.POST("", h.Mentees.Create)
		mentees.GET("/:id", h.Mentees.Get)
		mentees.PUT("/:id", h.Mentees.Update)
		mentees.DELETE("/:id", h.Mentees.Delete)
		mentees.GET("/:id/candidates", h.Assignments.Candidates)

		mentors := head.Group("/mentors")
		mentors.GET("", h.Mentors.List)
		mentors.POST("", h.Mentors.Create)
		mentors.GET("/:id", h.Mentors.Get)
		mentors.PUT("/:id", h.Mentors.Update)
		mentors.DELETE("/:id", h.Mentors.Delete)
		mentors.GET("/:id/capacity", h.Assignments.Capacity)
		mentors.GET("/:id/eligible-mentees", h.Assignments.EligibleMentees)
		mentors.POST("/:id/assignments", h.Assignments.AssignMany)

		assignments := head.Group("/assignments")
		assignments.POST("", h.Assignments.Assign)
		assignments.GET("", h.Assignments.List)
		assignments.POST("/reassign", h.Assignments.Reassign)
		assignments.POST("/auto-assign", h.Assignments.AutoAssign)
		assignments.GET("/runs/:id", h.Assignments.RunStatus)
		assignments.GET("/:id", h.Assignments.Details)
		assignments.POST("/:id/transfer", h.Assignments.Transfer)
		assignments.POST("/:id/complete", h.Assignments.Complete)
		assignments.DELETE("/:id", h.Assignments.Delete)

		activities := head.Group("/activities")
		activities.GET("", h.Activities.List)
		activities.POST("", h.Activities.Create)
		activities.GET("/next-id", h.Activities.NextID)
		activities.GET("/:id", h.Activities.Get)
		activities.PUT("/:id", h.Activities.Update)
		activities.DELETE("/:id", h.Activities.Delete)
	}

	mentor := secured.Group("/mentor")
	mentor.Use(middleware.RequireRoles(models.RoleMentor))
	{
		mentor.GET("/profile", h.Portal.MentorProfile)
		mentor.PUT("/profile", h.Portal.UpdateMentorProfile)
		mentor.GET("/mentees", h.Portal.MyMentees)
		mentor.GET("/mentees/:id", h.Portal.MenteeOverview)
		mentor.GET("/sessions", h.Portal.ListSessions)
		mentor.POST("/sessions", h.Portal.CreateSession)
		mentor.POST("/sessions/:id/complete", h.Portal.CompleteSession)
		mentor.DELETE("/sessions/:id", h.Portal.DeleteSession)
		mentor.POST("/sessions/:id/report", h.Portal.SaveReport)
		mentor.GET("/sessions/:id/report", h.Portal.Report)
		mentor.PUT("/sessions/:id/report", h.Portal.UpdateReport)
		mentor.DELETE("/sessions/:id/report", h.Portal.DeleteReport)
	}

	mentee := secured.Group("/mentee")
	mentee.Use(middleware.RequireRoles(models.RoleMentee))
	{
		mentee.GET("/profile", h.Portal.MenteeProfile)
		mentee.PUT("/profile", h.Portal.UpdateMenteeProfile)
		mentee.GET("/mentor", h.Portal.MyMentor)
		mentee.GET("/sessions", h.Portal.MySessions)
	}
}
