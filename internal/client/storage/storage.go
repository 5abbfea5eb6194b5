// Package storage almacenamiento del lado cliente para el token de sesión.
// Durable: archivo o Redis (sobrevive al proceso). Efímero: memoria.
// El token es un valor opaco que se reemplaza completo; no hay actualizaciones parciales.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenKey slot donde vive la credencial actual. Ausente = sin sesión.
const TokenKey = "token"

// ErrInvalidKey la key no es un nombre de slot válido.
var ErrInvalidKey = errors.New("storage: key inválida")

// Store almacenamiento clave/valor de strings opacos.
type Store interface {
	// Get devuelve (valor, true, nil) si existe; ("", false, nil) si no.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete es idempotente: borrar un slot ausente no es error.
	Delete(ctx context.Context, key string) error
}

// Config selección del backend durable.
type Config struct {
	Driver    string // file | redis
	Dir       string
	RedisAddr string
	RedisDB   int
	Prefix    string
	Timeout   time.Duration
}

// New crea el Store durable según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "file", "":
		return NewFile(cfg.Dir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			DB:          cfg.RedisDB,
			DialTimeout: cfg.Timeout,
		})
		return NewRedis(client, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: driver %q no soportado", cfg.Driver)
	}
}
