package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jhoicas/clinica-suite/internal/application/access"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/rs/zerolog"
)

// AccessHandler administración de la Access Code List por usuario.
type AccessHandler struct {
	svc *access.Service
	log zerolog.Logger
}

// NewAccessHandler construye el handler.
func NewAccessHandler(svc *access.Service, log zerolog.Logger) *AccessHandler {
	return &AccessHandler{svc: svc, log: log}
}

// List godoc
// @Summary      Listar access codes de un usuario
// @Tags         access
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "ID del usuario"
// @Success      200  {object}  dto.AccessCodesResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/users/{id}/access-codes [get]
func (h *AccessHandler) List(c *fiber.Ctx) error {
	userID, ok := userIDParam(c)
	if !ok {
		return invalidUserID(c)
	}
	codes, err := h.svc.List(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.AccessCodesResponse{UserID: userID, Codes: codes})
}

// Replace godoc
// @Summary      Reemplazar access codes de un usuario
// @Tags         access
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                    true  "ID del usuario"
// @Param        body  body  dto.SetAccessCodesRequest true  "códigos"
// @Success      200   {object}  dto.AccessCodesResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/users/{id}/access-codes [put]
func (h *AccessHandler) Replace(c *fiber.Ctx) error {
	var in dto.SetAccessCodesRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: validationMessage(err)})
	}
	userID, ok := userIDParam(c)
	if !ok {
		return invalidUserID(c)
	}
	codes, err := h.svc.Replace(c.UserContext(), userID, in.Codes)
	if err != nil {
		return h.fail(c, err)
	}
	h.log.Info().Str("by", GetUserID(c)).Str("user_id", userID).Strs("codes", codes).Msg("access codes actualizados")
	return c.JSON(dto.AccessCodesResponse{UserID: userID, Codes: codes})
}

// userIDParam los IDs de usuario son UUID; otro formato ni llega a la DB.
func userIDParam(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func invalidUserID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de usuario inválido"})
}

func (h *AccessHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "USER_NOT_FOUND", Message: "el usuario no existe"})
	}
	h.log.Error().Err(err).Msg("access codes: error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
