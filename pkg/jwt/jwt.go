package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsVersion versión actual del esquema de claims. Tokens con otra versión se rechazan.
const ClaimsVersion = 1

var (
	// ErrMissingSecret falla de configuración: no hay secreto de firma. Es fatal al arrancar.
	ErrMissingSecret = errors.New("jwt: secret vacío")
	// ErrInvalid token malformado, con firma incorrecta, expirado o con claims fuera de esquema.
	ErrInvalid = errors.New("jwt: token inválido")
)

// Subject datos del usuario que se firman en el token.
type Subject struct {
	ID       string
	Username string
	FullName string
	Role     string
}

// Claims incluye los claims estándar JWT más los campos propios de la suite.
// Role viaja en el token para que el middleware decida sin consultar la DB.
type Claims struct {
	jwt.RegisteredClaims
	Version  int    `json:"ver"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"` // ver pkg/rbac
}

// Validate chequea el esquema de los claims. golang-jwt lo invoca al verificar;
// Decode lo invoca a mano.
func (c Claims) Validate() error {
	switch {
	case c.Version != ClaimsVersion:
		return fmt.Errorf("versión de claims %d no soportada", c.Version)
	case strings.TrimSpace(c.Subject) == "":
		return errors.New("claim sub vacío")
	case strings.TrimSpace(c.Username) == "":
		return errors.New("claim username vacío")
	case strings.TrimSpace(c.Role) == "":
		return errors.New("claim role vacío")
	case c.ExpiresAt == nil:
		return errors.New("claim exp ausente")
	case c.IssuedAt == nil:
		return errors.New("claim iat ausente")
	}
	return nil
}

// VerifiedClaims claims cuya firma y expiración ya fueron validadas por Verify.
// Sólo este paquete puede construirlos con contenido.
type VerifiedClaims struct {
	verified Claims
}

// UnverifiedClaims claims leídos sin verificar firma (sólo para UX).
// Nunca deben habilitar una acción con efectos. Los campos difieren de VerifiedClaims
// para que la conversión VerifiedClaims(u) no compile.
type UnverifiedClaims struct {
	decoded Claims
}

func (v *VerifiedClaims) UserID() string       { return v.verified.Subject }
func (v *VerifiedClaims) Username() string     { return v.verified.Username }
func (v *VerifiedClaims) FullName() string     { return v.verified.FullName }
func (v *VerifiedClaims) Role() string         { return v.verified.Role }
func (v *VerifiedClaims) Issuer() string       { return v.verified.Issuer }
func (v *VerifiedClaims) ExpiresAt() time.Time { return v.verified.ExpiresAt.Time }
func (v *VerifiedClaims) IssuedAt() time.Time  { return v.verified.IssuedAt.Time }

func (u *UnverifiedClaims) UserID() string       { return u.decoded.Subject }
func (u *UnverifiedClaims) Username() string     { return u.decoded.Username }
func (u *UnverifiedClaims) FullName() string     { return u.decoded.FullName }
func (u *UnverifiedClaims) Role() string         { return u.decoded.Role }
func (u *UnverifiedClaims) Issuer() string       { return u.decoded.Issuer }
func (u *UnverifiedClaims) ExpiresAt() time.Time { return u.decoded.ExpiresAt.Time }
func (u *UnverifiedClaims) IssuedAt() time.Time  { return u.decoded.IssuedAt.Time }

// ExpiredAt informa si el token está vencido en el instante now (exp <= now).
func (u *UnverifiedClaims) ExpiredAt(now time.Time) bool {
	return !u.decoded.ExpiresAt.Time.After(now)
}

// Option ajusta el comportamiento de Issue, Verify y Decode.
type Option func(*options)

type options struct {
	now    func() time.Time
	issuer string
}

// WithClock reemplaza time.Now (tests y verificación con reloj controlado).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIssuer fija el emisor al firmar y lo exige al verificar.
func WithIssuer(issuer string) Option {
	return func(o *options) { o.issuer = issuer }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issue genera un token HS256 firmado con exp = now + ttl.
// Para los mismos datos, secreto e instante produce siempre el mismo token.
func Issue(subject Subject, secret string, ttl time.Duration, opts ...Option) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	o := buildOptions(opts)
	now := o.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    o.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Version:  ClaimsVersion,
		Username: subject.Username,
		FullName: subject.FullName,
		Role:     subject.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify valida firma, esquema, emisor y expiración (exp > now; en exp exacto ya expiró).
// Cualquier fallo se devuelve envuelto en ErrInvalid; la causa queda disponible vía errors.Is.
func Verify(tokenString, secret string, opts ...Option) (*VerifiedClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	o := buildOptions(opts)
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(o.now),
		jwt.WithExpirationRequired(),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !token.Valid {
		return nil, ErrInvalid
	}
	return &VerifiedClaims{verified: claims}, nil
}

// Decode lee los claims sin verificar la firma. Rechaza tokens sin firma (alg none)
// o con algoritmo distinto de HS256, y claims fuera de esquema. No revisa expiración.
func Decode(tokenString string, opts ...Option) (*UnverifiedClaims, error) {
	o := buildOptions(opts)
	var claims Claims
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: algoritmo %v no admitido", ErrInvalid, token.Header["alg"])
	}
	if err := claims.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if o.issuer != "" && claims.Issuer != o.issuer {
		return nil, fmt.Errorf("%w: emisor %q inesperado", ErrInvalid, claims.Issuer)
	}
	return &UnverifiedClaims{decoded: claims}, nil
}
