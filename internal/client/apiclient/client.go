// Package apiclient cliente HTTP de la API de autenticación (login, me, access codes).
// Implementa session.Authenticator.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/rs/zerolog"
)

var (
	// ErrLoginRejected respuesta no-2xx o success=false en el login.
	ErrLoginRejected = errors.New("apiclient: login rechazado")
	// ErrUnauthorized 401: token ausente, inválido o expirado.
	ErrUnauthorized = errors.New("apiclient: no autenticado")
	// ErrForbidden 403: token válido pero sin permiso. No invalida la sesión.
	ErrForbidden = errors.New("apiclient: acceso denegado")
	// ErrUnexpectedStatus cualquier otro status no-2xx.
	ErrUnexpectedStatus = errors.New("apiclient: status inesperado")
)

const defaultTimeout = 10 * time.Second

// Client habla con la API bajo baseURL (p. ej. http://localhost:8080/api).
type Client struct {
	baseURL string
	timeout time.Duration
	log     zerolog.Logger
}

// Option configura el Client.
type Option func(*Client)

// WithTimeout límite por petición; d <= 0 conserva el valor por defecto.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger logger para errores de transporte.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New construye el cliente para baseURL (sin barra final).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login POST /auth/login. Devuelve el token emitido por el servidor.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	a := fiber.Post(c.baseURL + "/auth/login").JSON(dto.LoginRequest{Username: username, Password: password})
	status, body, err := c.do(ctx, a)
	if err != nil {
		return "", err
	}
	var out dto.LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if status < 200 || status > 299 {
			return "", fmt.Errorf("%w: status %d", ErrLoginRejected, status)
		}
		return "", fmt.Errorf("apiclient: respuesta de login ilegible: %w", err)
	}
	if status < 200 || status > 299 || !out.Success || out.Data == nil || out.Data.Token == "" {
		c.log.Debug().Int("status", status).Str("message", out.Message).Msg("login rechazado")
		return "", fmt.Errorf("%w: %s", ErrLoginRejected, out.Message)
	}
	return out.Data.Token, nil
}

// Me GET /auth/me con el token dado.
func (c *Client) Me(ctx context.Context, token string) (*dto.MeResponse, error) {
	var out dto.MeResponse
	if err := c.getJSON(ctx, "/auth/me", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccessCodes GET /auth/access-codes: Access Code List del usuario del token.
func (c *Client) AccessCodes(ctx context.Context, token string) (*dto.AccessCodesResponse, error) {
	var out dto.AccessCodesResponse
	if err := c.getJSON(ctx, "/auth/access-codes", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	a := fiber.Get(c.baseURL + path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	status, body, err := c.do(ctx, a)
	if err != nil {
		return err
	}
	if err := statusError(status, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: respuesta ilegible de %s: %w", path, err)
	}
	return nil
}

// do ejecuta la petición respetando la cancelación y el deadline de ctx.
func (c *Client) do(ctx context.Context, a *fiber.Agent) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	a.Timeout(timeout)
	if err := a.Parse(); err != nil {
		return 0, nil, fmt.Errorf("apiclient: %w", err)
	}
	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("apiclient: %w", errors.Join(errs...))
	}
	return status, body, nil
}

func statusError(status int, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	var e dto.ErrorResponse
	_ = json.Unmarshal(body, &e)
	switch status {
	case fiber.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, e.Code)
	case fiber.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, e.Code)
	}
	return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, status, e.Code)
}
