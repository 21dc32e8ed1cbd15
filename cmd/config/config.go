// Package config собирает конфигурацию сервиса из флагов командной строки,
// необязательного YAML-файла и переменных окружения (в порядке возрастания приоритета).
// Переменные окружения могут быть заданы в файле .env.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Tier — лимиты одного уровня доступа.
type Tier struct {
	// BatchLimit — максимум изображений в одном запросе.
	BatchLimit int `yaml:"batch_limit"`
	// ImageQuota — максимум изображений за окно. 0 отключает проверку.
	ImageQuota int `yaml:"image_quota"`
	// RequestQuota — максимум запросов за окно. 0 отключает проверку.
	RequestQuota int `yaml:"request_quota"`
	// Window — длительность окна.
	Window time.Duration `yaml:"window"`
}

// Limits — набор уровней доступа.
type Limits struct {
	Guest   Tier `yaml:"guest"`
	User    Tier `yaml:"user"`
	Contact Tier `yaml:"contact"`
}

// Config — полная конфигурация сервиса.
type Config struct {
	RunAddr       string `yaml:"address"`
	LogLevel      string `yaml:"log_level"`
	DatabaseDSN   string `yaml:"database_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	EnableHTTPS   bool   `yaml:"enable_https"`
	CertFile      string `yaml:"cert_file"`
	KeyFile       string `yaml:"key_file"`
	TrustedSubnet string `yaml:"trusted_subnet"`
	EnablePprof   bool   `yaml:"enable_pprof"`
	// TrustedProxies — адреса или подсети обратных прокси, чьим заголовкам
	// X-Forwarded-For и X-Real-IP можно верить.
	TrustedProxies []string `yaml:"trusted_proxies"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	UsersFile     string `yaml:"users_file"`
	AdminEmail    string `yaml:"admin_email"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	ContactTransport string `yaml:"contact_transport"`
	ContactOutbox    string `yaml:"contact_outbox"`
	ContactQueue     string `yaml:"contact_queue"`

	MaxFileSizeKB   int64         `yaml:"max_file_size_kb"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`
	Workers         int           `yaml:"workers"`
	OptimizeQuality int           `yaml:"optimize_quality"`
	ConvertQuality  int           `yaml:"convert_quality"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	Limits Limits `yaml:"limits"`

	// Dev разрешает запуск с секретом по умолчанию.
	Dev bool `yaml:"dev"`
}

// DefaultSecret используется только в режиме разработки.
const DefaultSecret = "imgify-dev-secret"

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		RunAddr:          ":8080",
		LogLevel:         "info",
		CertFile:         "server.crt",
		KeyFile:          "server.key",
		TokenTTL:         24 * time.Hour,
		AdminUsername:    "admin",
		ContactTransport: "log",
		ContactOutbox:    "contacts.jsonl",
		ContactQueue:     "imgify:contact",
		MaxFileSizeKB:    10240,
		BatchTimeout:     60 * time.Second,
		OptimizeQuality:  85,
		ConvertQuality:   90,
		CORSOrigins:      []string{"*"},
		Limits: Limits{
			Guest:   Tier{BatchLimit: 5, ImageQuota: 20, Window: 24 * time.Hour},
			User:    Tier{BatchLimit: 50, ImageQuota: 500, Window: 24 * time.Hour},
			Contact: Tier{BatchLimit: 1, RequestQuota: 3, Window: time.Hour},
		},
	}
}

// MaxFileSize возвращает максимальный размер файла в байтах.
func (c *Config) MaxFileSize() int64 {
	return c.MaxFileSizeKB * 1024
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		if !c.Dev {
			errs = append(errs, errors.New("jwt secret is required (JWT_SECRET)"))
		}
	}
	if c.MaxFileSizeKB <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	for name, tier := range map[string]Tier{"guest": c.Limits.Guest, "user": c.Limits.User, "contact": c.Limits.Contact} {
		if tier.BatchLimit <= 0 {
			errs = append(errs, fmt.Errorf("%s batch limit must be positive", name))
		}
		if tier.Window <= 0 {
			errs = append(errs, fmt.Errorf("%s window must be positive", name))
		}
		if tier.ImageQuota < 0 || tier.RequestQuota < 0 {
			errs = append(errs, fmt.Errorf("%s quota must not be negative", name))
		}
	}
	for _, proxy := range c.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			errs = append(errs, fmt.Errorf("invalid trusted proxy %q", proxy))
		}
	}
	switch c.ContactTransport {
	case "log", "file", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown contact transport %q", c.ContactTransport))
	}
	return errors.Join(errs...)
}

// Load разбирает флаги из args, затем YAML-файл и переменные окружения.
func Load(args []string) (*Config, error) {
	cfg := Default()

	// Файл .env необязателен.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("imgify", flag.ContinueOnError)
	configPath := fs.String("c", "", "path to YAML config file")
	fs.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "address and port to run server")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database dsn")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address for shared rate limit counters")
	fs.BoolVar(&cfg.EnableHTTPS, "s", cfg.EnableHTTPS, "enable HTTPS")
	fs.StringVar(&cfg.TrustedSubnet, "t", cfg.TrustedSubnet, "trusted subnet (CIDR) for internal stats")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development mode")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Запоминаем явно заданные флаги: они важнее файла.
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if env := os.Getenv("CONFIG"); env != "" && *configPath == "" {
		*configPath = env
	}
	if *configPath != "" {
		if err := loadFile(cfg, *configPath); err != nil {
			return nil, err
		}
		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_ADDRESS", &cfg.RunAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	str("REDIS_ADDR", &cfg.RedisAddr)
	boolean("ENABLE_HTTPS", &cfg.EnableHTTPS)
	str("TRUSTED_SUBNET", &cfg.TrustedSubnet)
	boolean("ENABLE_PPROF", &cfg.EnablePprof)
	str("JWT_SECRET", &cfg.JWTSecret)
	duration("TOKEN_TTL", &cfg.TokenTTL)
	str("USERS_FILE", &cfg.UsersFile)
	str("ADMIN_EMAIL", &cfg.AdminEmail)
	str("ADMIN_USERNAME", &cfg.AdminUsername)
	str("ADMIN_PASSWORD", &cfg.AdminPassword)
	str("CONTACT_TRANSPORT", &cfg.ContactTransport)
	str("CONTACT_OUTBOX", &cfg.ContactOutbox)
	str("CONTACT_QUEUE", &cfg.ContactQueue)
	duration("BATCH_TIMEOUT", &cfg.BatchTimeout)
	integer("WORKERS", &cfg.Workers)
	integer("IMGIFY_GUEST_BATCH_LIMIT", &cfg.Limits.Guest.BatchLimit)
	integer("IMGIFY_GUEST_DAILY_LIMIT", &cfg.Limits.Guest.ImageQuota)
	integer("IMGIFY_USER_BATCH_LIMIT", &cfg.Limits.User.BatchLimit)
	integer("IMGIFY_USER_DAILY_LIMIT", &cfg.Limits.User.ImageQuota)
	boolean("IMGIFY_DEV", &cfg.Dev)

	if v := os.Getenv("MAX_FILE_SIZE_KB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_FILE_SIZE_KB: %w", err))
		} else {
			cfg.MaxFileSizeKB = n
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = strings.Split(v, ",")
	}

	if cfg.JWTSecret == "" && cfg.Dev {
		cfg.JWTSecret = DefaultSecret
	}
	return errors.Join(errs...)
}
