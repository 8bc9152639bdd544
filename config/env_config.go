package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
		VHost    string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
		UIBucket     string
	}
	Installer struct {
		InstallQueue      string
		NotificationQueue string
		DeadLetterQueue   string
		WorkDir           string
		Shell             string
		UIDir             string
		PipelineFile      string
		StepTimeout       time.Duration
		MaxDeliveries     int
		RequeueDelay      time.Duration
		ShutdownTimeout   time.Duration
	}
	HTTP struct {
		Port         string
		AllowDomains string
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode  string
		Group string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres (optional, enables job run history)
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	// Redis (optional, enables the delivery attempt cap)
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")
	config.RabbitMQ.VHost = os.Getenv("RABBITMQ_VHOST")

	// MinIO (optional, backs sync_ui steps)
	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", false)
	config.Minio.UIBucket = getEnv("UI_BUCKET", "plugin-uis")

	config.Installer.InstallQueue = getEnv("INSTALL_QUEUE", "managePluginInstall")
	config.Installer.NotificationQueue = getEnv("NOTIFICATION_QUEUE", "core:manage-installation-notification")
	config.Installer.DeadLetterQueue = getEnv("DEAD_LETTER_QUEUE", config.Installer.InstallQueue+".dead")
	config.Installer.WorkDir = getEnv("WORK_DIR", "/erxes")
	config.Installer.Shell = getEnv("INSTALLER_SHELL", "sh")
	config.Installer.UIDir = getEnv("UI_DIR", "/erxes/plugin-uis")
	config.Installer.PipelineFile = os.Getenv("PIPELINE_FILE")
	config.Installer.StepTimeout = getEnvDuration("STEP_TIMEOUT", 10*time.Minute)
	config.Installer.MaxDeliveries = getEnvInt("MAX_DELIVERIES", 3)
	config.Installer.RequeueDelay = getEnvDuration("REQUEUE_DELAY", 5*time.Second)
	config.Installer.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Minute)

	config.HTTP.Port = getEnv("HTTP_PORT", "8080")
	config.HTTP.AllowDomains = getEnv("ALLOWED_DOMAINS", "*")

	// Grafana/OpenTelemetry, disabled when no endpoint is set
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-plugin-installer")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = getEnv("GROUP_NAME", "local")

	return &config
}

// RabbitMQURL builds the AMQP connection string.
func (c *EnvConfig) RabbitMQURL() string {
	return "amqp://" + c.RabbitMQ.Username + ":" + c.RabbitMQ.Password + "@" +
		c.RabbitMQ.Host + ":" + c.RabbitMQ.Port + "/" + c.RabbitMQ.VHost
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
