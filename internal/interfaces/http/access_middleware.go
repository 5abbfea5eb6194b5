package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/rs/zerolog"
)

// accessChecker contrato mínimo para verificar access codes.
// Lo implementa *access.Service.
type accessChecker interface {
	Has(ctx context.Context, userID, code string) (bool, error)
}

// RequireAccessCode verifica que el usuario del token tenga el código fino indicado.
// Debe usarse DESPUÉS de AuthMiddleware.
//
//   - 403 ACCESS_DENIED: el usuario no tiene el código.
//   - 503 ACCESS_CHECK_FAILED: no se pudo consultar (DB/caché caídas).
func RequireAccessCode(code string, checker accessChecker, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return unauthorized(c, "UNAUTHORIZED", "sesión no verificada")
		}
		ok, err := checker.Has(c.UserContext(), userID, code)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("fallo verificando access code")
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "ACCESS_CHECK_FAILED",
				Message: "no se pudo verificar el acceso, intente más tarde",
			})
		}
		if !ok {
			return forbidden(c, "access_code", "ACCESS_DENIED", "código de acceso '"+code+"' requerido")
		}
		return c.Next()
	}
}
