package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// FirestoreConfig points at the hosted document database holding the site's
// content and per-user notification subcollections.
type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
	// CredentialsFile is optional; empty means application default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// DatabaseConfig is the Postgres instance used for cleanup-run history.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
}

// AuthConfig locates the identity provider used to verify admin tokens.
type AuthConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Realm   string `mapstructure:"realm"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: STUDIO_ADMIN_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8092")
	v.SetDefault("server.env", "development")
	v.SetDefault("firestore.project_id", "atelier-studio")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "studio_admin")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.audit_topic", "admin-audit")
	v.SetDefault("auth.base_url", "http://localhost:8081")
	v.SetDefault("auth.realm", "studio")

	// Environment variables (e.g. DATABASE_HOST -> database.host)
	v.SetEnvPrefix("STUDIO_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support simple env vars without prefix for Docker Compose convenience
	v.BindEnv("firestore.project_id", "FIRESTORE_PROJECT_ID")
	v.BindEnv("firestore.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.base_url", "AUTH_URL")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" dbname=" + d.Name +
		" user=" + d.User +
		" password=" + d.Password +
		" sslmode=disable"
}
