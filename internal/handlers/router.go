package handlers

import (
	"github.com/bobbybaxter/poke-api-extension/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Router groups the handlers served by the API.
type Router struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Health       *HealthHandler
	Authenticate gin.HandlerFunc
	Development  bool
}

// Setup builds the gin engine with middleware and routes.
func (r Router) Setup() (*gin.Engine, error) {
	if err := utils.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(RequestLogger(), ErrorHandler(r.Development))
	router.NoRoute(NotFound)

	router.GET("/health", r.Health.HealthCheck)

	// Public routes (authentication)
	router.POST("/register", r.Auth.Register)
	router.POST("/login", r.Auth.Login)
	router.POST("/refresh", r.Auth.Refresh)
	router.POST("/logout", r.Auth.Logout)

	// Protected routes (require a bearer access token)
	protected := router.Group("/user")
	protected.Use(r.Authenticate)
	{
		protected.GET("/:id", r.Users.GetUser)
		protected.PATCH("/:id", r.Users.UpdateUser)
		protected.DELETE("/:id", r.Users.DeleteUser)
	}

	return router, nil
}
