package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	users       *UserStore
	issuer      *TokenIssuer
	revocations *TokenRevocationStore
}

func NewHandler(users *UserStore, issuer *TokenIssuer, revocations *TokenRevocationStore) *Handler {
	return &Handler{users: users, issuer: issuer, revocations: revocations}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
	api.GET("/auth/access/:screen", h.Access)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type sessionUser struct {
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Station  string   `json:"consultorio,omitempty"`
	Screens  []string `json:"screens"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      sessionUser `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Username == "" || req.Password == "" || req.Role == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, password and role are required")
	}

	u, err := h.users.Authenticate(req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, ErrUnknownRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		log.Warn().Str("username", req.Username).Str("role", req.Role).Msg("login rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, claims, err := h.issuer.Issue(u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	log.Info().Str("username", u.Username).Str("role", u.Role).Msg("user logged in")
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User: sessionUser{
			Username: u.Username,
			Name:     u.Name,
			Role:     u.Role,
			Station:  u.Station,
			Screens:  ScreensFor(u.Role),
		},
	})
}

// Logout revokes the caller's token until it expires.
func (h *Handler) Logout(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if h.revocations != nil {
		h.revocations.Revoke(claims.ID, claims.Subject, claims.ExpiresAt.Time)
	}
	log.Info().Str("username", claims.Subject).Msg("user logged out")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	roles := RolesFromContext(ctx)
	if len(roles) == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, sessionUser{
		Username: UserIDFromContext(ctx),
		Name:     NameFromContext(ctx),
		Role:     roles[0],
		Station:  StationFromContext(ctx),
		Screens:  ScreensFor(roles[0]),
	})
}

func (h *Handler) Access(c echo.Context) error {
	screen := c.Param("screen")
	allowed := false
	for _, role := range RolesFromContext(c.Request().Context()) {
		if CanAccess(role, screen) {
			allowed = true
			break
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"screen": screen, "allowed": allowed})
}
