package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints (health checks) and FHIR discovery endpoints that
// must be accessible without credentials.
var publicPaths = map[string]bool{
	"/health":        true,
	"/health/db":     true,
	"/health/cache":  true,
	"/fhir/metadata": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public infrastructure
// endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
