package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingJWTSecret el secreto de firma es obligatorio; sin él el proceso no arranca.
var ErrMissingJWTSecret = errors.New("config: JWT_SECRET es obligatorio")

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
// Se lee una sola vez al arrancar el proceso.
type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	HTTP   HTTPConfig
	Portal PortalConfig
	Cache  CacheConfig
	Client ClientConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de emisión de tokens.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// TTL devuelve la vida por defecto de un token.
func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.Expiration) * time.Minute
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host        string
	Port        int
	SwaggerFile string // vacío o inexistente = sin /docs
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PortalConfig punto de entrada compartido de login (todas las apps redirigen aquí).
type PortalConfig struct {
	BaseURL   string
	LoginPath string
}

// LoginURL URL absoluta del login del portal.
func (c PortalConfig) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.LoginPath
}

// CacheConfig caché de access codes.
type CacheConfig struct {
	Driver    string // memory | redis
	RedisAddr string
	RedisDB   int
	TTL       int // segundos
}

// ClientConfig configuración de clinicctl (lado cliente).
type ClientConfig struct {
	APIBaseURL string
	Storage    string // file | redis
	StateDir   string // un archivo por slot (token, ...)
	Timeout    int    // segundos
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "clinica-auth"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "clinica"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "clinica-auth"),
		},
		HTTP: HTTPConfig{
			Host:        getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:        getInt(v, "HTTP_PORT", 8080),
			SwaggerFile: getString(v, "HTTP_SWAGGER_FILE", "./docs/swagger.json"),
		},
		Portal: PortalConfig{
			BaseURL:   getString(v, "PORTAL_BASE_URL", "http://localhost:3000"),
			LoginPath: getString(v, "PORTAL_LOGIN_PATH", "/login"),
		},
		Cache: CacheConfig{
			Driver:    getString(v, "CACHE_DRIVER", "memory"),
			RedisAddr: getString(v, "REDIS_ADDR", "localhost:6379"),
			RedisDB:   getInt(v, "REDIS_DB", 0),
			TTL:       getInt(v, "ACCESS_CODES_TTL_SECONDS", 300),
		},
		Client: ClientConfig{
			APIBaseURL: getString(v, "CLIENT_API_BASE_URL", "http://localhost:8080/api"),
			Storage:    getString(v, "CLIENT_STORAGE", "file"),
			StateDir:   getString(v, "CLIENT_STATE_DIR", ".clinicctl"),
			Timeout:    getInt(v, "CLIENT_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Validate detecta fallas de configuración que deben abortar el arranque del servidor.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("config: JWT_EXPIRATION_MINUTES debe ser positivo (%d)", c.JWT.Expiration)
	}
	if !strings.HasPrefix(c.Portal.LoginPath, "/") {
		return fmt.Errorf("config: PORTAL_LOGIN_PATH debe iniciar con / (%q)", c.Portal.LoginPath)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
