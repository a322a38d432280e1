package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a token: infrastructure
// endpoints, login and the public display board.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/metrics":           true,
	"/ws":                true,
	"/api/v1/auth/login": true,
	"/api/v1/board":      true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
