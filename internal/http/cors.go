package http

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware lets a browser dashboard read settings and submit updates.
// allowOrigins is a comma-separated list; "*" allows any origin without credentials.
// It returns nil when CORS is disabled or no origin is usable.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOrigins)
	if len(origins) == 0 {
		logger.Warn("cors enabled but no origins configured, cors will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods:  []string{"GET", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}

	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
		logger.Warn("cors allows any origin; credentials are disabled")
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
		logger.Info("cors enabled", slog.Any("origins", origins))
	}

	return cors.New(config)
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}

	var parsed []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			parsed = append(parsed, origin)
		}
	}
	return parsed
}
