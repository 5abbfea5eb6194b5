// Package cache provee caché clave/valor con TTL para datos resueltos en servidor
// (Access Code List). Backends:
//   - memory: in-process (go-cache), para desarrollo o una sola réplica
//   - redis: compartido entre réplicas de la API
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client operaciones de caché.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)
	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config configuración para crear un cliente de caché.
type Config struct {
	Driver     string // "memory" | "redis"
	RedisAddr  string
	RedisDB    int
	Prefix     string
	DefaultTTL time.Duration
}

// New crea un cliente de caché según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.Prefix), nil
	case "memory", "":
		return NewMemory(cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("cache: driver %q no soportado", cfg.Driver)
	}
}
