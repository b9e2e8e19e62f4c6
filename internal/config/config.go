package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del paquete.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Providers es la allow-list: solo los providers presentes y habilitados
	// pasan el primer chequeo del engine.
	Providers map[string]Provider `yaml:"providers"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns int `yaml:"max_open_conns"`
			MaxIdleConns int `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis | none
		Kind  string `yaml:"kind"`
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Events struct {
		// log | redis | none
		Sink  string `yaml:"sink"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Channel string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"events"`
}

// Provider es la configuración de un provider social.
type Provider struct {
	// Enabled permite deshabilitar un provider sin borrarlo del YAML.
	// Ausente ⇒ habilitado (estar listado ya es opt-in).
	Enabled *bool `yaml:"enabled"`

	// DisplayName para logs y UIs. Vacío ⇒ clave capitalizada.
	DisplayName string `yaml:"display_name"`

	Scopes []string `yaml:"scopes"`
}

// Load lee el YAML y aplica overrides por variables de entorno.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnv()
	return &c, nil
}

// Default retorna una configuración sin YAML (solo defaults + env).
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.applyEnv()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "5m"
	}
	if c.Events.Sink == "" {
		c.Events.Sink = "log"
	}
	if c.Events.Redis.Channel == "" {
		c.Events.Redis.Channel = "socialink.events"
	}
}

func (c *Config) applyEnv() {
	if v, ok := getEnvStr("SOCIALINK_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SOCIALINK_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SOCIALINK_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("SOCIALINK_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("SOCIALINK_PG_MAX_OPEN"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvStr("SOCIALINK_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("SOCIALINK_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		if c.Events.Redis.Addr == "" {
			c.Events.Redis.Addr = v
		}
	}
	if v, ok := getEnvStr("SOCIALINK_EVENTS_SINK"); ok {
		c.Events.Sink = v
	}
}

// IsAllowed implementa la allow-list del engine: el provider existe en la
// configuración y no está explícitamente deshabilitado.
func (c *Config) IsAllowed(provider string) bool {
	p, ok := c.Providers[provider]
	if !ok {
		return false
	}
	return p.Enabled == nil || *p.Enabled
}

// ProviderNames lista los providers habilitados.
// El orden no está garantizado; el caller ordena si lo necesita.
func (c *Config) ProviderNames() []string {
	var names []string
	for name := range c.Providers {
		if c.IsAllowed(name) {
			names = append(names, name)
		}
	}
	return names
}

// DisplayName retorna el nombre legible de un provider: el configurado, o
// la clave con la primera letra en mayúscula.
func (c *Config) DisplayName(provider string) string {
	if p, ok := c.Providers[provider]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	if provider == "" {
		return ""
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}

// CacheTTL parsea el TTL del cache; inválido ⇒ 5m.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Cache.TTL))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
