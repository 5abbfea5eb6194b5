package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/clinica-suite/internal/application/access"
	"github.com/jhoicas/clinica-suite/internal/application/auth"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/rs/zerolog"
)

// AuthHandler maneja login y la sesión actual.
type AuthHandler struct {
	uc     *auth.AuthUseCase
	access *access.Service
	log    zerolog.Logger
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc *auth.AuthUseCase, accessSvc *access.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, access: accessSvc, log: log}
}

func loginFailure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.LoginResponse{Success: false, Message: msg})
}

// Login godoc
// @Summary      Iniciar sesión
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "username, password"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  dto.LoginResponse
// @Failure      401   {object}  dto.LoginResponse
// @Failure      403   {object}  dto.LoginResponse
// @Failure      429   {object}  dto.LoginResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return loginFailure(c, fiber.StatusBadRequest, "cuerpo inválido")
	}
	if err := validate.Struct(in); err != nil {
		return loginFailure(c, fiber.StatusBadRequest, validationMessage(err))
	}
	out, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			return loginFailure(c, fiber.StatusUnauthorized, "credenciales inválidas")
		case errors.Is(err, domain.ErrForbidden):
			return loginFailure(c, fiber.StatusForbidden, "cuenta inactiva o suspendida")
		}
		h.log.Error().Err(err).Msg("login: error interno")
		return loginFailure(c, fiber.StatusInternalServerError, "error interno, intente más tarde")
	}
	return c.JSON(dto.LoginResponse{Success: true, Message: "ok", Data: out})
}

// Me godoc
// @Summary      Sesión actual
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  dto.MeResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := GetClaims(c)
	if claims == nil {
		return unauthorized(c, "UNAUTHORIZED", "sesión no verificada")
	}
	return c.JSON(auth.Me(claims))
}

// AccessCodes godoc
// @Summary      Access codes del usuario actual
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  dto.AccessCodesResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/auth/access-codes [get]
func (h *AuthHandler) AccessCodes(c *fiber.Ctx) error {
	userID := GetUserID(c)
	codes, err := h.access.List(c.UserContext(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("access codes: no disponibles")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "ACCESS_CHECK_FAILED", Message: "no se pudieron obtener los códigos de acceso"})
	}
	return c.JSON(dto.AccessCodesResponse{UserID: userID, Codes: codes})
}
