// Package router builds the Echo instance: it installs the middlewares in
// order and maps every path to its handler.
package router

import (
	"net/http"

	"github.com/deppfellow/agent-chat-backend/internal/handler"
	"github.com/deppfellow/agent-chat-backend/internal/middleware"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/labstack/echo/v4"
)

// unlimitedPaths are the probes exempt from rate limiting.
var unlimitedPaths = map[string]bool{
	"/status": true,
	"/ok":     true,
}

// NewRouter returns the configured Echo instance.
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.RateLimit.Limit(func(c echo.Context) bool {
			return unlimitedPaths[c.Request().URL.Path]
		}),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
	)

	registerSystemRoutes(router, h)

	api := router.Group("")
	if middlewares.Auth.Enabled() {
		api.Use(middlewares.Auth.RequireAuth)
	}
	registerAssistantRoutes(api, h)
	registerThreadRoutes(api, h)
	registerRunRoutes(api, h)

	return router
}

func registerAssistantRoutes(api *echo.Group, h *handler.Handlers) {
	ah := h.Assistant

	api.POST("/assistants/search", handler.Handle(ah.Handler, ah.Search, http.StatusOK, &handler.SearchAssistantsRequest{}))
	api.GET("/assistants/:assistant_id", handler.Handle(ah.Handler, ah.Get, http.StatusOK, &handler.AssistantIDRequest{}))
	api.GET("/assistants/:assistant_id/schemas", handler.Handle(ah.Handler, ah.Schemas, http.StatusOK, &handler.AssistantIDRequest{}))
}

func registerThreadRoutes(api *echo.Group, h *handler.Handlers) {
	th := h.Thread

	api.POST("/threads", handler.Handle(th.Handler, th.Create, http.StatusOK, &handler.CreateThreadRequest{}))
	api.POST("/threads/search", handler.Handle(th.Handler, th.Search, http.StatusOK, &handler.SearchThreadsRequest{}))

	threads := api.Group("/threads/:thread_id")
	threads.GET("", handler.Handle(th.Handler, th.Get, http.StatusOK, &handler.ThreadIDRequest{}))
	threads.PATCH("", handler.Handle(th.Handler, th.Update, http.StatusOK, &handler.UpdateThreadRequest{}))
	threads.DELETE("", handler.HandleNoContent(th.Handler, th.Delete, http.StatusNoContent, &handler.ThreadIDRequest{}))
	threads.GET("/state", handler.Handle(th.Handler, th.State, http.StatusOK, &handler.ThreadIDRequest{}))
	threads.POST("/history", handler.Handle(th.Handler, th.History, http.StatusOK, &handler.HistoryRequest{}))
	threads.POST("/history/search", handler.Handle(th.Handler, th.History, http.StatusOK, &handler.HistoryRequest{}))
}

func registerRunRoutes(api *echo.Group, h *handler.Handlers) {
	rh := h.Run

	runs := api.Group("/threads/:thread_id/runs")
	runs.POST("", handler.Handle(rh.Handler, rh.Create, http.StatusOK, &handler.CreateRunRequest{}))
	runs.GET("", handler.Handle(rh.Handler, rh.List, http.StatusOK, &handler.ListRunsRequest{}))
	runs.POST("/stream", handler.HandleStream(rh.Handler, rh.Stream, &handler.CreateRunRequest{}))
	runs.GET("/:run_id", handler.Handle(rh.Handler, rh.Get, http.StatusOK, &handler.RunIDRequest{}))
}
