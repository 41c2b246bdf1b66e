package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *gin.Context)
	// (GET /openapi)
	GetOpenAPI(c *gin.Context)
	// (POST /v1/auth/sign-in)
	SignIn(c *gin.Context)
	// (POST /v1/auth/sign-up)
	SignUp(c *gin.Context)
	// (POST /v1/auth/refresh)
	Refresh(c *gin.Context)
	// (POST /v1/auth/sign-out)
	SignOut(c *gin.Context)
	// (GET /v1/gate)
	GetGate(c *gin.Context)
	// (GET /v1/gate/events)
	StreamGate(c *gin.Context)
	// (GET /v1/me)
	GetMe(c *gin.Context)
	// (POST /v1/onboarding)
	OpenOnboarding(c *gin.Context)
	// (DELETE /v1/onboarding/{mountId})
	CloseOnboarding(c *gin.Context, mountId MountId)
	// (POST /v1/onboarding/{mountId}/avatar)
	SelectTemplate(c *gin.Context, mountId MountId)
	// (POST /v1/profile)
	OpenProfile(c *gin.Context)
	// (DELETE /v1/profile/{mountId})
	CloseProfile(c *gin.Context, mountId MountId)
	// (POST /v1/profile/{mountId}/equip)
	EquipAsset(c *gin.Context, mountId MountId)
}

type MiddlewareFunc func(c *gin.Context)

// ServerInterfaceWrapper binds path parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandler       func(*gin.Context, error, int)
}

func (siw *ServerInterfaceWrapper) run(c *gin.Context, secured bool, handler func(*gin.Context)) {
	if secured {
		c.Set(BearerAuthScopes, []string{})
	}
	for _, middleware := range siw.HandlerMiddlewares {
		middleware(c)
		if c.IsAborted() {
			return
		}
	}
	handler(c)
}

func (siw *ServerInterfaceWrapper) bindMountId(c *gin.Context) (MountId, bool) {
	var mountId MountId
	err := runtime.BindStyledParameterWithOptions("simple", "mountId", c.Param("mountId"), &mountId, runtime.BindStyledParameterOptions{Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandler(c, fmt.Errorf("Invalid format for parameter mountId: %w", err), http.StatusBadRequest)
		return "", false
	}
	return mountId, true
}

func (siw *ServerInterfaceWrapper) withMountId(handler func(*gin.Context, MountId)) gin.HandlerFunc {
	return func(c *gin.Context) {
		mountId, ok := siw.bindMountId(c)
		if !ok {
			return
		}
		siw.run(c, true, func(c *gin.Context) { handler(c, mountId) })
	}
}

func (siw *ServerInterfaceWrapper) public(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) { siw.run(c, false, handler) }
}

func (siw *ServerInterfaceWrapper) secured(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) { siw.run(c, true, handler) }
}

// GinServerOptions provides options for the Gin server.
type GinServerOptions struct {
	BaseURL      string
	Middlewares  []MiddlewareFunc
	ErrorHandler func(*gin.Context, error, int)
}

// RegisterHandlers creates http.Handler with routing matching OpenAPI spec.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, GinServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router gin.IRouter, si ServerInterface, options GinServerOptions) {
	errorHandler := options.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, gin.H{"msg": err.Error()})
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandler:       errorHandler,
	}
	base := options.BaseURL

	router.GET(base+"/ping", wrapper.public(si.GetPing))
	router.GET(base+"/openapi", wrapper.public(si.GetOpenAPI))
	router.POST(base+"/v1/auth/sign-in", wrapper.public(si.SignIn))
	router.POST(base+"/v1/auth/sign-up", wrapper.public(si.SignUp))
	router.POST(base+"/v1/auth/refresh", wrapper.public(si.Refresh))
	router.POST(base+"/v1/auth/sign-out", wrapper.secured(si.SignOut))
	router.GET(base+"/v1/gate", wrapper.secured(si.GetGate))
	router.GET(base+"/v1/gate/events", wrapper.secured(si.StreamGate))
	router.GET(base+"/v1/me", wrapper.secured(si.GetMe))
	router.POST(base+"/v1/onboarding", wrapper.secured(si.OpenOnboarding))
	router.DELETE(base+"/v1/onboarding/:mountId", wrapper.withMountId(si.CloseOnboarding))
	router.POST(base+"/v1/onboarding/:mountId/avatar", wrapper.withMountId(si.SelectTemplate))
	router.POST(base+"/v1/profile", wrapper.secured(si.OpenProfile))
	router.DELETE(base+"/v1/profile/:mountId", wrapper.withMountId(si.CloseProfile))
	router.POST(base+"/v1/profile/:mountId/equip", wrapper.withMountId(si.EquipAsset))
}
