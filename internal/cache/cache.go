// Package cache provee abstracciones para caching con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Todo el estado compartido del BFF (metadata del provider, token cache,
// sesiones) vive detrás de esta interfaz.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr incrementa un contador y fija el TTL en el primer hit de la
	// ventana. Devuelve el valor resultante.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// CommandTimeout limita cada operación individual. Pasado el timeout la
	// operación se reporta como error de backend. Default: 1s.
	CommandTimeout time.Duration

	// MaxRetryBackoff limita el backoff exponencial de reconexión del cliente
	// Redis. Default: 5s.
	MaxRetryBackoff time.Duration

	// DefaultTTL para el backend memory. Default: 24h.
	DefaultTTL time.Duration
}

func (c Config) commandTimeout() time.Duration {
	if c.CommandTimeout <= 0 {
		return time.Second
	}
	return c.CommandTimeout
}

func (c Config) maxRetryBackoff() time.Duration {
	if c.MaxRetryBackoff <= 0 {
		return 5 * time.Second
	}
	return c.MaxRetryBackoff
}

// Errores de cache.
var (
	ErrNotFound = errNotFound{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg), nil
	default:
		return NewMemory(cfg), nil
	}
}
