package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"eventreg/cmd/middleware"
	"eventreg/internal/auth"
	"eventreg/internal/service"
)

type Routers struct {
	Service service.Service
	Tokens  *auth.Tokens
	// StaticDir, when set, is served at / as the single-page frontend.
	StaticDir string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization")
	app.Use(cors.New(corsCfg))
	apiGroup := app.Group("/v1")

	apiGroup.GET("/event", r.Service.GetEvent)
	apiGroup.GET("/event/stream", r.Service.StreamEvent)

	apiGroup.POST("/register", r.Service.Register)
	apiGroup.GET("/register/:session", r.Service.GetRegistrationSession)
	apiGroup.GET("/register/:session/payment", r.Service.GetPayment)
	apiGroup.GET("/register/:session/payment/qr", r.Service.GetPaymentQR)
	apiGroup.POST("/register/:session/paid", r.Service.MarkPaid)
	apiGroup.POST("/register/:session/receipt", r.Service.UploadReceipt)

	apiGroup.GET("/gallery", r.Service.ListGallery)

	adminGroup := apiGroup.Group("/admin")
	adminGroup.POST("/login", r.Service.Login)

	guarded := adminGroup.Group("")
	guarded.Use(middleware.RequireAdmin(r.Tokens))
	guarded.POST("/logout", r.Service.Logout)
	guarded.GET("/session", r.Service.CurrentSession)

	guarded.GET("/registrations", r.Service.ListRegistrations)
	guarded.GET("/registrations/export", r.Service.ExportRegistrations)
	guarded.PATCH("/registrations/:id", r.Service.UpdateRegistration)
	guarded.DELETE("/registrations/:id", r.Service.DeleteRegistration)

	guarded.PUT("/event/details", r.Service.UpdateEventDetails)
	guarded.PUT("/event/settings", r.Service.UpdateEventSettings)

	guarded.POST("/gallery", r.Service.CreateGalleryImage)
	guarded.PATCH("/gallery/:id", r.Service.UpdateGalleryImage)
	guarded.DELETE("/gallery/:id", r.Service.DeleteGalleryImage)

	if r.StaticDir != "" {
		app.Static("/app", r.StaticDir)
		app.GET("/", func(c *ginext.Context) {
			c.File(r.StaticDir + "/index.html")
		})
	}

	return app
}
