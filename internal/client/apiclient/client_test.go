package apiclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/internal/client/apiclient"
	"github.com/jhoicas/clinica-suite/internal/client/session"
	"github.com/jhoicas/clinica-suite/internal/client/storage"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
)

const secret = "stub-server-secret"

// startStub levanta una API mínima con las mismas formas de respuesta que la real.
func startStub(t *testing.T) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/api/auth/login", func(c *fiber.Ctx) error {
		var in dto.LoginRequest
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.LoginResponse{Message: "cuerpo inválido"})
		}
		switch {
		case in.Username == "u1" && in.Password == "p1":
			tok, err := jwt.Issue(jwt.Subject{ID: "id-u1", Username: "u1", Role: "admin"}, secret, time.Hour)
			if err != nil {
				return err
			}
			return c.JSON(dto.LoginResponse{Success: true, Message: "ok", Data: &dto.LoginData{Token: tok}})
		case in.Username == "blando":
			// 200 con success=false también es un login fallido.
			return c.JSON(dto.LoginResponse{Success: false, Message: "mantenimiento"})
		case in.Username == "html":
			return c.Status(fiber.StatusBadGateway).SendString("<html>bad gateway</html>")
		}
		return c.Status(fiber.StatusUnauthorized).JSON(dto.LoginResponse{Message: "credenciales inválidas"})
	})

	bearer := func(c *fiber.Ctx) (*jwt.VerifiedClaims, error) {
		h := c.Get(fiber.HeaderAuthorization)
		if len(h) < 8 {
			return nil, jwt.ErrInvalid
		}
		return jwt.Verify(h[7:], secret)
	}
	app.Get("/api/auth/me", func(c *fiber.Ctx) error {
		claims, err := bearer(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN"})
		}
		return c.JSON(dto.MeResponse{ID: claims.UserID(), Username: claims.Username(), Role: claims.Role()})
	})
	app.Get("/api/auth/access-codes", func(c *fiber.Ctx) error {
		claims, err := bearer(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN"})
		}
		if claims.Role() != "admin" {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN"})
		}
		return c.JSON(dto.AccessCodesResponse{UserID: claims.UserID(), Codes: []string{"AP0", "AP20"}})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String() + "/api"
}

func TestLogin_Exitoso(t *testing.T) {
	c := apiclient.New(startStub(t))

	tok, err := c.Login(context.Background(), "u1", "p1")
	require.NoError(t, err)

	claims, err := jwt.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Username())
}

func TestLogin_Rechazos(t *testing.T) {
	c := apiclient.New(startStub(t))

	for _, user := range []string{"u1-mal", "blando", "html"} {
		_, err := c.Login(context.Background(), user, "x")
		assert.ErrorIs(t, err, apiclient.ErrLoginRejected, user)
	}
}

func TestLogin_ServidorCaido(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := apiclient.New("http://"+addr+"/api", apiclient.WithTimeout(time.Second))
	_, err = c.Login(context.Background(), "u1", "p1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apiclient.ErrLoginRejected)
}

func TestMeYAccessCodes(t *testing.T) {
	base := startStub(t)
	c := apiclient.New(base)
	ctx := context.Background()

	tok, err := c.Login(ctx, "u1", "p1")
	require.NoError(t, err)

	me, err := c.Me(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "id-u1", me.ID)

	codes, err := c.AccessCodes(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, []string{"AP0", "AP20"}, codes.Codes)
}

func TestErroresDeStatus(t *testing.T) {
	c := apiclient.New(startStub(t))
	ctx := context.Background()

	_, err := c.Me(ctx, "basura")
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)

	staff, err := jwt.Issue(jwt.Subject{ID: "id-2", Username: "u2", Role: "staff"}, secret, time.Hour)
	require.NoError(t, err)
	_, err = c.AccessCodes(ctx, staff)
	assert.ErrorIs(t, err, apiclient.ErrForbidden)
}

func TestContextoCancelado(t *testing.T) {
	c := apiclient.New(startStub(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Login(ctx, "u1", "p1")
	assert.ErrorIs(t, err, context.Canceled)
}

// Provider + cliente HTTP contra el stub: el flujo completo de un front-end.
func TestProviderConClienteHTTP(t *testing.T) {
	c := apiclient.New(startStub(t))
	durable := storage.NewMemory()
	p := session.NewProvider(session.Deps{Durable: durable, Auth: c}, session.Config{})

	require.Equal(t, session.StateUnauthenticated, p.Init(context.Background()).State)

	_, err := p.Login(context.Background(), "u1", "mala")
	require.ErrorIs(t, err, session.ErrLoginFailed)
	assert.ErrorIs(t, err, apiclient.ErrLoginRejected)

	sess, err := p.Login(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.Role)

	tok, ok, err := durable.Get(context.Background(), storage.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)

	me, err := c.Me(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", me.Username)
}
