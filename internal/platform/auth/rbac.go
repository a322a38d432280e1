package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleReceptionist = "recepcionista"
	RoleNurse        = "enfermeiro"
	RoleDoctor       = "medico"
	RoleAdmin        = "admin"
)

// AllRoles lists the staff roles accepted at login.
var AllRoles = []string{RoleReceptionist, RoleNurse, RoleDoctor, RoleAdmin}

const (
	ScreenRegistration = "cadastro"
	ScreenTriage       = "triagem"
	ScreenDoctor       = "medico"
	ScreenHistory      = "historico"
	ScreenPublic       = "publico"
	ScreenFichas       = "fichas"
	ScreenTickets      = "senhas"
)

var screenAccess = map[string][]string{
	RoleReceptionist: {ScreenRegistration, ScreenPublic, ScreenFichas, ScreenTickets},
	RoleNurse:        {ScreenTriage, ScreenPublic, ScreenFichas},
	RoleDoctor:       {ScreenDoctor, ScreenHistory, ScreenPublic, ScreenFichas},
	RoleAdmin: {
		ScreenRegistration, ScreenTriage, ScreenDoctor, ScreenHistory,
		ScreenPublic, ScreenFichas, ScreenTickets,
	},
}

// ValidRole reports whether role is one of AllRoles.
func ValidRole(role string) bool {
	return slices.Contains(AllRoles, role)
}

// CanAccess reports whether role may open screen.
func CanAccess(role, screen string) bool {
	return slices.Contains(screenAccess[role], screen)
}

// ScreensFor returns the screens role may open.
func ScreensFor(role string) []string {
	return slices.Clone(screenAccess[role])
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
