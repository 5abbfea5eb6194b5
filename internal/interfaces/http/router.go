package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jhoicas/clinica-suite/internal/application/access"
	"github.com/jhoicas/clinica-suite/internal/application/auth"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
	"github.com/rs/zerolog"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	AccessSvc *access.Service
	JWTSecret string
	JWTIssuer string
	Log       zerolog.Logger

	// LoginRateLimit intentos de login por IP y minuto; 0 usa el valor por defecto.
	LoginRateLimit int
	// UserAdminCode access code exigido para administrar códigos de otros usuarios;
	// vacío usa DefaultUserAdminCode.
	UserAdminCode string
}

const defaultLoginRateLimit = 10

// DefaultUserAdminCode access code de la pantalla de administración de usuarios.
const DefaultUserAdminCode = "US0"

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	max := deps.LoginRateLimit
	if max <= 0 {
		max = defaultLoginRateLimit
	}
	loginLimiter := limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.LoginResponse{
				Success: false,
				Message: "demasiados intentos, espere un minuto",
			})
		},
	})

	authHandler := NewAuthHandler(deps.AuthUC, deps.AccessSvc, deps.Log)
	accessHandler := NewAccessHandler(deps.AccessSvc, deps.Log)

	var verifyOpts []jwt.Option
	if deps.JWTIssuer != "" {
		verifyOpts = append(verifyOpts, jwt.WithIssuer(deps.JWTIssuer))
	}
	requireAuth := AuthMiddleware(deps.JWTSecret, verifyOpts...)

	// Auth (login público)
	authGroup := api.Group("/auth")
	authGroup.Post("/login", loginLimiter, authHandler.Login)
	authGroup.Get("/me", requireAuth, authHandler.Me)
	authGroup.Get("/access-codes", requireAuth, authHandler.AccessCodes)

	adminCode := deps.UserAdminCode
	if adminCode == "" {
		adminCode = DefaultUserAdminCode
	}

	requireAdminCode := RequireAccessCode(adminCode, deps.AccessSvc, deps.Log)

	// Administración de access codes: rol y, además, el access code de la pantalla.
	users := api.Group("/users", requireAuth)
	users.Get("/:id/access-codes", RequireRole(rbac.RoleAdmin, rbac.RoleSuperAdmin), requireAdminCode, accessHandler.List)
	users.Put("/:id/access-codes", RequireRole(rbac.RoleSuperAdmin), RequirePermission(rbac.PermUsers), requireAdminCode, accessHandler.Replace)
}
