// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the proxy's endpoints onto a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/codelibs/intaste-go/services/proxy/handlers"
	"github.com/codelibs/intaste-go/services/proxy/middleware"
)

// SetupRoutes registers every proxy route.
//
// Layout:
//
//	GET  /health                       liveness
//	GET  /metrics                      prometheus
//	POST /api/assist/query/stream      SSE proxy
//	POST /api/assist/query             non-streaming proxy
//	POST /api/assist/feedback          feedback proxy
func SetupRoutes(router *gin.Engine, assistHandler *handlers.AssistHandler) {
	router.Use(otelgin.Middleware("intaste-proxy"))
	router.Use(middleware.EnsureTraceID())

	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		assist := api.Group("/assist")
		{
			assist.POST("/query/stream", assistHandler.HandleQueryStream)
			assist.POST("/query", assistHandler.HandleQuery)
			assist.POST("/feedback", assistHandler.HandleFeedback)
		}
	}
}
