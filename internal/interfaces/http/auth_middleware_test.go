package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/clinica-suite/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testIssuer    = "clinica-auth-test"
)

// buildTestApp construye una aplicación Fiber mínima con:
//   - AuthMiddleware para verificar el JWT y cargar los claims
//   - RequireRole para autorizar el acceso
//   - Un handler dummy que devuelve 200 si pasa los middlewares
func buildTestApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret, pkgjwt.WithIssuer(testIssuer)),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"ok":   true,
				"role": apphttp.GetRole(c),
			})
		},
	)
	return app
}

func issueToken(t *testing.T, role string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	tok, err := pkgjwt.Issue(pkgjwt.Subject{ID: testUserID, Username: "u1", FullName: "Usuario Uno", Role: role},
		testJWTSecret, ttl, pkgjwt.WithIssuer(testIssuer), pkgjwt.WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err, "debe generarse un token JWT válido")
	return tok
}

// tokenForRole genera un JWT vigente con el rol indicado.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	return "Bearer " + issueToken(t, role, time.Now(), time.Hour)
}

// doRequest lanza una petición GET al path y devuelve la respuesta.
func doRequest(t *testing.T, app *fiber.App, path, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body.Code
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_AdminAccedeRutaAdmin(t *testing.T) {
	app := buildTestApp("admin")
	resp := doRequest(t, app, "/protected", tokenForRole(t, "admin"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "admin", body["role"])
}

func TestRequireRole_StaffAccedeRutaAdminOStaff(t *testing.T) {
	app := buildTestApp("admin", "staff")
	resp := doRequest(t, app, "/protected", tokenForRole(t, "staff"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Token válido con rol staff en ruta sólo admin → 403.
func TestRequireRole_StaffBloqueadoEnRutaAdmin(t *testing.T) {
	app := buildTestApp("admin")
	resp := doRequest(t, app, "/protected", tokenForRole(t, "staff"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
}

func TestRequireRole_RolDesconocidoBloqueado(t *testing.T) {
	app := buildTestApp("admin", "superadmin")
	resp := doRequest(t, app, "/protected", tokenForRole(t, "root"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRequireRole_SinAuthMiddleware_Retorna401(t *testing.T) {
	app := fiber.New()
	app.Get("/x", apphttp.RequireRole("admin"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp := doRequest(t, app, "/x", tokenForRole(t, "admin"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_SinHeader_Retorna401(t *testing.T) {
	app := buildTestApp("admin")
	resp := doRequest(t, app, "/protected", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", errorCode(t, resp))
}

func TestAuthMiddleware_FormatoInvalido_Retorna401(t *testing.T) {
	app := buildTestApp("admin")
	tok := issueToken(t, "admin", time.Now(), time.Hour)

	for _, header := range []string{"Basic dXNlcjpwYXNz", tok, "bearer " + tok, "Bearer"} {
		resp := doRequest(t, app, "/protected", header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		resp.Body.Close()
	}
}

func TestAuthMiddleware_TokenMalformado_Retorna401(t *testing.T) {
	app := buildTestApp("admin")
	resp := doRequest(t, app, "/protected", "Bearer token.invalido.aqui")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, resp))
}

// Token expirado → 401 con el mismo código que cualquier token inválido.
func TestAuthMiddleware_TokenExpirado_Retorna401(t *testing.T) {
	app := buildTestApp("admin")
	expired := issueToken(t, "admin", time.Now().Add(-2*time.Hour), time.Hour)

	resp := doRequest(t, app, "/protected", "Bearer "+expired)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, resp))
}

func TestAuthMiddleware_SecretOEmisorDistinto_Retorna401(t *testing.T) {
	app := buildTestApp("admin")

	otherSecret, err := pkgjwt.Issue(pkgjwt.Subject{ID: testUserID, Username: "u1", Role: "admin"},
		"otro-secret-completamente-distinto", time.Hour, pkgjwt.WithIssuer(testIssuer))
	require.NoError(t, err)
	otherIssuer, err := pkgjwt.Issue(pkgjwt.Subject{ID: testUserID, Username: "u1", Role: "admin"},
		testJWTSecret, time.Hour, pkgjwt.WithIssuer("otra-app"))
	require.NoError(t, err)

	for _, tok := range []string{otherSecret, otherIssuer} {
		resp := doRequest(t, app, "/protected", "Bearer "+tok)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestAuthMiddleware_ExtraeClaims(t *testing.T) {
	app := fiber.New()
	app.Get("/me", apphttp.AuthMiddleware(testJWTSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":  apphttp.GetUserID(c),
			"username": apphttp.GetUsername(c),
			"role":     apphttp.GetRole(c),
		})
	})

	resp := doRequest(t, app, "/me", tokenForRole(t, "admin"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, "u1", body["username"])
	assert.Equal(t, "admin", body["role"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests RequirePermission / RequireAccessCode
// ──────────────────────────────────────────────────────────────────────────────

func TestRequirePermission(t *testing.T) {
	app := fiber.New()
	app.Get("/billing", apphttp.AuthMiddleware(testJWTSecret), apphttp.RequirePermission(rbac.PermBilling),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := map[string]int{
		"superadmin":  http.StatusOK,
		"admin":       http.StatusOK,
		"staff":       http.StatusForbidden,
		"maintenance": http.StatusForbidden,
		"desconocido": http.StatusForbidden,
	}
	for role, want := range cases {
		resp := doRequest(t, app, "/billing", tokenForRole(t, role))
		assert.Equal(t, want, resp.StatusCode, role)
		resp.Body.Close()
	}
}

type stubChecker struct {
	codes map[string]bool
	err   error
}

func (s stubChecker) Has(_ context.Context, _ string, code string) (bool, error) {
	return s.codes[code], s.err
}

func TestRequireAccessCode(t *testing.T) {
	build := func(checker stubChecker) *fiber.App {
		app := fiber.New()
		app.Get("/agenda", apphttp.AuthMiddleware(testJWTSecret),
			apphttp.RequireAccessCode("AP20", checker, zerolog.Nop()),
			func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
		return app
	}

	resp := doRequest(t, build(stubChecker{codes: map[string]bool{"AP20": true}}), "/agenda", tokenForRole(t, "staff"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, build(stubChecker{codes: map[string]bool{"AP0": true}}), "/agenda", tokenForRole(t, "superadmin"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "el access code manda sobre el rol")
	assert.Equal(t, "ACCESS_DENIED", errorCode(t, resp))
	resp.Body.Close()

	resp = doRequest(t, build(stubChecker{err: errors.New("db caída")}), "/agenda", tokenForRole(t, "staff"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "ACCESS_CHECK_FAILED", errorCode(t, resp))
	resp.Body.Close()
}
