package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/metrics"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
)

// LocalClaims key de c.Locals con los *jwt.VerifiedClaims del request.
const LocalClaims = "auth_claims"

func unauthorized(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func forbidden(c *fiber.Ctx, gate, code, msg string) error {
	metrics.AuthorizationDenials.WithLabelValues(gate).Inc()
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

// AuthMiddleware valida el Bearer Token y deja los claims verificados en c.Locals.
// Cualquier falla de verificación (expirado, firma, formato) responde el mismo 401.
func AuthMiddleware(jwtSecret string, opts ...jwt.Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			metrics.TokenVerifications.WithLabelValues(metrics.OutcomeMissing).Inc()
			return unauthorized(c, "MISSING_TOKEN", "Authorization header requerido")
		}
		scheme, tokenString, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" {
			metrics.TokenVerifications.WithLabelValues(metrics.OutcomeInvalid).Inc()
			return unauthorized(c, "INVALID_TOKEN", "formato: Bearer <token>")
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			metrics.TokenVerifications.WithLabelValues(metrics.OutcomeMissing).Inc()
			return unauthorized(c, "MISSING_TOKEN", "token vacío")
		}
		claims, err := jwt.Verify(tokenString, jwtSecret, opts...)
		if err != nil {
			metrics.TokenVerifications.WithLabelValues(metrics.OutcomeInvalid).Inc()
			return unauthorized(c, "INVALID_TOKEN", "token inválido o expirado")
		}
		metrics.TokenVerifications.WithLabelValues(metrics.OutcomeSuccess).Inc()
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

// RequireRole permite el paso sólo si el rol del token está en allowed.
// Debe usarse DESPUÉS de AuthMiddleware.
func RequireRole(allowed ...string) fiber.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil {
			return unauthorized(c, "UNAUTHORIZED", "sesión no verificada")
		}
		if _, ok := set[claims.Role()]; !ok {
			return forbidden(c, "role", "FORBIDDEN", "el rol '"+claims.Role()+"' no tiene acceso a este recurso")
		}
		return c.Next()
	}
}

// RequirePermission permite el paso si la tabla de roles otorga perm al rol del token.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil {
			return unauthorized(c, "UNAUTHORIZED", "sesión no verificada")
		}
		if !rbac.PermissionsFor(claims.Role()).Has(perm) {
			return forbidden(c, "permission", "FORBIDDEN", "permiso '"+perm+"' requerido")
		}
		return c.Next()
	}
}

// GetClaims devuelve los claims verificados del contexto, o nil.
func GetClaims(c *fiber.Ctx) *jwt.VerifiedClaims {
	claims, _ := c.Locals(LocalClaims).(*jwt.VerifiedClaims)
	return claims
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string {
	if claims := GetClaims(c); claims != nil {
		return claims.UserID()
	}
	return ""
}

// GetRole devuelve el rol del token.
func GetRole(c *fiber.Ctx) string {
	if claims := GetClaims(c); claims != nil {
		return claims.Role()
	}
	return ""
}

// GetUsername devuelve el username del token.
func GetUsername(c *fiber.Ctx) string {
	if claims := GetClaims(c); claims != nil {
		return claims.Username()
	}
	return ""
}
