package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`

	// DSN, when set, wins over the individual fields.
	DSN              string `toml:"dsn"`
	MaxOpenConns     int    `toml:"max_open_conns"`
	StatementTimeout string `toml:"statement_timeout"`
	ConnectRetries   uint   `toml:"connect_retries"`
}

type ConfigParam struct {
	ServerPort        string   `toml:"server_port"`
	HandleCORS        bool     `toml:"handle_cors"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	LogLevel          string   `toml:"log_level"`
	PrettyLog         bool     `toml:"pretty_log"`
	PageSize          int64    `toml:"page_size"`
	NotificationsPage int64    `toml:"notifications_page_size"`
	SearchLimit       int      `toml:"search_limit"`
	PushTimeout       string   `toml:"push_timeout"`
	WebsocketPing     string   `toml:"websocket_ping"`
	MaxImportSize     string   `toml:"max_import_size"`
	Locale            string   `toml:"locale"`
	DB                DBConfig `toml:"db"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

func defaults() *ConfigParam {
	return &ConfigParam{
		ServerPort:        "8195",
		HandleCORS:        true,
		AllowedOrigins:    []string{"http://localhost:3000"},
		LogLevel:          "info",
		PageSize:          20,
		NotificationsPage: 10,
		SearchLimit:       20,
		PushTimeout:       "2s",
		WebsocketPing:     "30s",
		MaxImportSize:     "10MB",
		Locale:            "it",
		DB: DBConfig{
			Host:             "localhost",
			Port:             5432,
			Name:             "vetrina",
			User:             "vetrina",
			Password:         "vetrina",
			SSLMode:          "disable",
			MaxOpenConns:     20,
			StatementTimeout: "5s",
			ConnectRetries:   5,
		},
	}
}

// LoadConfig reads filename over the defaults. An empty filename keeps the defaults. Variables from a .env
// file in the working directory are loaded first; VETRINA_DB_DSN overrides the database location.
func LoadConfig(filename string) error {
	_ = godotenv.Load()

	cp := defaults()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), cp); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	}
	if dsn := os.Getenv("VETRINA_DB_DSN"); dsn != "" {
		cp.DB.DSN = dsn
	}
	if port := os.Getenv("VETRINA_PORT"); port != "" {
		cp.ServerPort = port
	}
	if err := cp.validate(); err != nil {
		return err
	}
	cfg = cp
	return nil
}

func (c *ConfigParam) validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid server_port %q", c.ServerPort)
	}
	if c.PageSize <= 0 || c.NotificationsPage <= 0 || c.SearchLimit <= 0 {
		return fmt.Errorf("page sizes and search_limit must be positive")
	}
	for name, d := range map[string]string{"push_timeout": c.PushTimeout, "websocket_ping": c.WebsocketPing} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	if _, err := ParseSize(c.MaxImportSize); err != nil {
		return fmt.Errorf("invalid max_import_size: %v", err)
	}
	return nil
}

// Dsn returns the connection string for the database.
func (c DBConfig) Dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *ConfigParam) PushTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PushTimeout)
	return d
}

func (c *ConfigParam) WebsocketPingDuration() time.Duration {
	d, _ := time.ParseDuration(c.WebsocketPing)
	return d
}

func (c *ConfigParam) MaxImportBytes() int64 {
	n, _ := ParseSize(c.MaxImportSize)
	return n
}

// ParseSize parses sizes like "512KB" or "10MB". A bare number is bytes.
func ParseSize(input string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %s", input)
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", input)
	}
	return n * mult, nil
}

func init() {
	cfg = defaults()
}
