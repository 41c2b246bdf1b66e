package main

import (
	"net/http"
	"strings"
	"time"

	"engame/api"
	"engame/validator"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginmiddleware "github.com/oapi-codegen/gin-middleware"
)

type ServerConfig struct {
	MountTTL time.Duration
}

// NewRouter wires validation, bearer auth and the handlers onto a gin engine.
func NewRouter(server *Server, swagger *openapi3.T, auth validator.Authenticator) *gin.Engine {
	// Clear out the servers array in the swagger spec, that skips validating
	// that server names match. We don't know how this thing will be run.
	swagger.Servers = nil

	r := gin.Default()
	r.Use(cors.New(corsConfig()))
	r.Use(ginmiddleware.OapiRequestValidatorWithOptions(swagger, &ginmiddleware.Options{
		ErrorHandler: validationError,
		Options: openapi3filter.Options{
			AuthenticationFunc: auth.Authenticate,
		},
	}))
	api.RegisterHandlersWithOptions(r, server, api.GinServerOptions{
		ErrorHandler: func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, api.ErrorNotice(err.Error()))
		},
	})
	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cfg
}

// validationError turns a rejected request into a notice. The middleware
// reports every failure as 400, failed bearer auth included.
func validationError(c *gin.Context, message string, statusCode int) {
	if strings.Contains(message, "SecurityRequirementsError") || strings.Contains(message, "security requirements failed") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.SignInNotice("User not authenticated"))
		return
	}
	c.AbortWithStatusJSON(statusCode, api.ErrorNotice(message))
}
