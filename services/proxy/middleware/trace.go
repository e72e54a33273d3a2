// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds gin middleware for the assist proxy.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codelibs/intaste-go/pkg/assist"
)

// traceIDKey is the gin context key holding the request trace id.
const traceIDKey = "intaste.traceId"

// EnsureTraceID guarantees every request carries a trace id.
//
// An incoming X-Intaste-Trace-Id header is honored so browser sessions
// can correlate across retries; otherwise one is minted. The id is
// echoed on the response and stored in the gin context.
func EnsureTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(assist.HeaderTraceID)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(assist.HeaderTraceID, id)
		}
		c.Set(traceIDKey, id)
		c.Writer.Header().Set(assist.HeaderTraceID, id)
		c.Next()
	}
}

// TraceID returns the request's trace id, or "" outside EnsureTraceID.
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
