package Config

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the server and the CLI commands.
type Config struct {
	Port           string
	DataDir        string
	RegistryFile   string
	RequestLogFile string
	DBPath         string

	UpstreamURL      string
	UpstreamUser     string
	UpstreamPassword string
	UpstreamTimeout  time.Duration

	// JWTSecret empty disables token verification.
	JWTSecret string

	FirebaseCredentials string
	SlackBotToken       string
	SlackTaskChannel    string

	ReconcileSchedule string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3001")
	v.SetDefault("DATA_DIR", "./employee_profiles")
	v.SetDefault("REGISTRY_FILE", "")
	v.SetDefault("REQUEST_LOG_FILE", "logs/requests.log")
	v.SetDefault("DB_PATH", "database.db")
	v.SetDefault("UPSTREAM_URL", "http://165.23.126.88:8888")
	v.SetDefault("UPSTREAM_USER", "")
	v.SetDefault("UPSTREAM_PASSWORD", "")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("SLACK_BOT_TOKEN", "")
	v.SetDefault("SLACK_TASK_CHANNEL", "")
	v.SetDefault("RECONCILE_SCHEDULE", "@every 5m")
}

// Load reads .env (when present) into the process environment and then
// resolves every setting from the environment with defaults applied.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("No env file loaded (%v), using process environment", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:                v.GetString("PORT"),
		DataDir:             v.GetString("DATA_DIR"),
		RegistryFile:        v.GetString("REGISTRY_FILE"),
		RequestLogFile:      v.GetString("REQUEST_LOG_FILE"),
		DBPath:              v.GetString("DB_PATH"),
		UpstreamURL:         strings.TrimRight(v.GetString("UPSTREAM_URL"), "/"),
		UpstreamUser:        v.GetString("UPSTREAM_USER"),
		UpstreamPassword:    v.GetString("UPSTREAM_PASSWORD"),
		UpstreamTimeout:     v.GetDuration("UPSTREAM_TIMEOUT"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS"),
		SlackBotToken:       v.GetString("SLACK_BOT_TOKEN"),
		SlackTaskChannel:    v.GetString("SLACK_TASK_CHANNEL"),
		ReconcileSchedule:   v.GetString("RECONCILE_SCHEDULE"),
	}
	if cfg.RegistryFile == "" {
		cfg.RegistryFile = filepath.Join(cfg.DataDir, "master_employees.json")
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 10 * time.Second
	}
	return cfg
}
