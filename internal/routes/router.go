package routes

import (
	"github.com/gin-gonic/gin"

	"taskhub/internal/controller"
	"taskhub/internal/middleware"
	"taskhub/internal/notify"
)

// Deps are the components the router serves.
type Deps struct {
	Auth          controller.AuthService
	Authenticator middleware.Authenticator
	Tasks         controller.TaskService
	Hub           *notify.Hub
	Tokens        notify.TokenVerifier
	Store         controller.Pinger
	Cache         controller.CacheStats
	Production    bool
}

func Router(d Deps) *gin.Engine {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		controller.ErrorHandler(d.Production),
		controller.Recovery(),
		middleware.CORS(),
	)
	router.NoRoute(controller.NotFound)

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready(d.Store, d.Cache))

	// Notification socket; authenticates itself during the handshake
	router.GET("/ws", gin.WrapF(notify.ServeWS(d.Hub, d.Tokens)))

	v1 := router.Group("/api/v1")

	auth := controller.NewAuth(d.Auth)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.GET("/me", middleware.AuthMiddleware(d.Authenticator), auth.Me)
	}

	tasks := controller.NewTasks(d.Tasks)
	api := v1.Group("/tasks")
	api.Use(middleware.AuthMiddleware(d.Authenticator))
	{
		api.GET("", tasks.List)
		api.POST("", tasks.Create)
		api.GET("/:id", tasks.Get)
		api.PATCH("/:id", tasks.Edit)
		api.DELETE("/:id", tasks.Delete)
	}

	return router
}
