// Package access resuelve la Access Code List de cada usuario: códigos finos que el servidor
// autoriza y que son autoritativos sobre los permisos gruesos del rol.
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/jhoicas/clinica-suite/internal/domain/entity"
	"github.com/jhoicas/clinica-suite/internal/domain/repository"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/cache"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "access_codes:"
	// loadTimeout límite de la lectura compartida por singleflight; no depende de ningún request.
	loadTimeout = 5 * time.Second
)

// Service lectura cacheada y reemplazo de códigos por usuario.
type Service struct {
	repo  repository.AccessCodeRepository
	users repository.UserRepository
	cache cache.Client
	ttl   time.Duration
	sf    singleflight.Group
	log   zerolog.Logger

	// versions se incrementa en cada Replace; una carga que empezó con otra versión
	// no escribe en la caché.
	mu       sync.Mutex
	versions map[string]uint64
}

// NewService construye el servicio. ttl <= 0 deja la expiración al backend de caché.
func NewService(repo repository.AccessCodeRepository, users repository.UserRepository, c cache.Client, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, cache: c, ttl: ttl, log: log, versions: make(map[string]uint64)}
}

func cacheKey(userID string) string { return keyPrefix + userID }

// List devuelve los códigos del usuario, ordenados. Un fallo de caché no es fatal:
// se registra y se consulta la DB.
func (s *Service) List(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("access: %w: userID vacío", domain.ErrInvalidInput)
	}
	raw, err := s.cache.Get(ctx, cacheKey(userID))
	switch {
	case err == nil:
		var codes []string
		if jerr := json.Unmarshal([]byte(raw), &codes); jerr == nil {
			metrics.AccessCodeLookups.WithLabelValues("cache").Inc()
			return codes, nil
		}
		s.log.Warn().Str("user_id", userID).Msg("entrada de caché corrupta, se descarta")
	case !errors.Is(err, cache.ErrNotFound):
		s.log.Warn().Err(err).Str("user_id", userID).Msg("caché no disponible, se consulta la DB")
	}

	v, err, _ := s.sf.Do(userID, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		metrics.AccessCodeLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.AccessCodeLookups.WithLabelValues("db").Inc()
	return slices.Clone(v.([]string)), nil
}

// load lee la DB y cachea el resultado salvo que un Replace haya ocurrido durante la lectura.
func (s *Service) load(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	version := s.version(userID)
	codes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return codes, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[userID] != version {
		s.log.Debug().Str("user_id", userID).Msg("access codes cambiaron durante la lectura, no se cachean")
		return codes, nil
	}
	if err := s.cache.Set(ctx, cacheKey(userID), string(b), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("no se pudo cachear access codes")
	}
	return codes, nil
}

func (s *Service) version(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[userID]
}

func (s *Service) bump(userID string) {
	s.mu.Lock()
	s.versions[userID]++
	s.mu.Unlock()
}

// Has informa si el usuario tiene el código.
func (s *Service) Has(ctx context.Context, userID, code string) (bool, error) {
	codes, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(codes, code), nil
}

// Replace valida, deduplica y persiste la lista completa; invalida la caché del usuario.
func (s *Service) Replace(ctx context.Context, userID string, codes []string) ([]string, error) {
	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		if !entity.ValidAccessCode(c) {
			return nil, fmt.Errorf("access: %w: código %q", domain.ErrInvalidInput, c)
		}
		normalized = append(normalized, c)
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	// Se versiona antes y después de escribir: cualquier carga que se solape con el
	// reemplazo queda descartada y las siguientes no se unen a una lectura vieja.
	s.bump(userID)
	if err := s.repo.Replace(ctx, userID, normalized); err != nil {
		return nil, err
	}
	s.bump(userID)
	s.sf.Forget(userID)
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("no se pudo invalidar caché de access codes")
	}
	s.log.Info().Str("user_id", userID).Int("count", len(normalized)).Msg("access codes reemplazados")
	return normalized, nil
}
