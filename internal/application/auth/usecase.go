package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/clinica-suite/internal/application/dto"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/jhoicas/clinica-suite/internal/domain/entity"
	"github.com/jhoicas/clinica-suite/internal/domain/repository"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/metrics"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// AuthUseCase caso de uso de login: valida credenciales y emite el token compartido.
type AuthUseCase struct {
	userRepo repository.UserRepository
	jwtCfg   JWTConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(userRepo repository.UserRepository, jwtCfg JWTConfig, log zerolog.Logger) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, jwtCfg: jwtCfg, log: log, now: time.Now}
}

// WithClock reemplaza el reloj usado al firmar (tests).
func (uc *AuthUseCase) WithClock(now func() time.Time) *AuthUseCase {
	uc.now = now
	return uc
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy gasta el mismo tiempo que un bcrypt real cuando el usuario no existe,
// para no revelar qué usernames existen por tiempo de respuesta.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("clinica-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// NormalizeUsername aplica NFKC + case folding; así se guardan y se buscan los usernames.
func NormalizeUsername(username string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(username)))
}

// Login verifica username/password, genera el token y retorna token + usuario.
// Usuario inexistente y password incorrecto devuelven el mismo error.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginData, error) {
	username := NormalizeUsername(in.Username)
	user, err := uc.userRepo.FindByUsername(ctx, username)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	if user == nil {
		compareDummy(in.Password)
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeInvalid).Inc()
		uc.log.Info().Str("username", username).Msg("login rechazado: usuario inexistente")
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeInvalid).Inc()
		uc.log.Info().Str("user_id", user.ID).Msg("login rechazado: password incorrecto")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeForbidden).Inc()
		uc.log.Info().Str("user_id", user.ID).Str("status", user.Status).Msg("login rechazado: cuenta no activa")
		return nil, domain.ErrForbidden
	}
	token, err := jwt.Issue(jwt.Subject{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	}, uc.jwtCfg.Secret, uc.jwtCfg.TTL, jwt.WithIssuer(uc.jwtCfg.Issuer), jwt.WithClock(uc.now))
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	uc.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("login exitoso")
	return &dto.LoginData{Token: token, User: toUserResponse(user)}, nil
}

// Me proyecta claims verificados a la respuesta de sesión, con los permisos de la tabla compartida.
func Me(claims *jwt.VerifiedClaims) dto.MeResponse {
	return dto.MeResponse{
		ID:          claims.UserID(),
		Username:    claims.Username(),
		FullName:    claims.FullName(),
		Role:        claims.Role(),
		Permissions: rbac.PermissionsFor(claims.Role()).Slice(),
		IssuedAt:    claims.IssuedAt(),
		ExpiresAt:   claims.ExpiresAt(),
	}
}

func toUserResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		FullName:    u.FullName,
		Role:        u.Role,
		Permissions: rbac.PermissionsFor(u.Role).Slice(),
	}
}
