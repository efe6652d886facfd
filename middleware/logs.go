package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// LogConfig holds configuration for the logging middleware
type LogConfig struct {
	Console bool
	// Empty disables file logging.
	LogFilePath string
	// "json" or "text"
	Format    string
	SkipPaths []string
	// Only log responses with status >= 400 or a handler error.
	ErrorsOnly bool
}

// LogData is one request log line.
type LogData struct {
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	URL           string        `json:"url"`
	Status        int           `json:"status"`
	Latency       time.Duration `json:"latency"`
	IP            string        `json:"ip"`
	UserAgent     string        `json:"user_agent"`
	RequestID     string        `json:"request_id"`
	Error         string        `json:"error,omitempty"`
	Username      string        `json:"username,omitempty"`
	Permission    int           `json:"permission,omitempty"`
	ContentLength int64         `json:"content_length"`
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Console:     true,
		LogFilePath: "logs/requests.log",
		Format:      "json",
		SkipPaths:   []string{"/health", "/metrics"},
	}
}

type logSink struct {
	mu   sync.Mutex
	path string
}

func (s *logSink) write(message string) {
	if s == nil || s.path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	if _, err := file.WriteString(message + "\n"); err != nil {
		log.Printf("Error writing to log file: %v\n", err)
	}
}

// LoggingMiddleware creates a new logging middleware with the given configuration
func LoggingMiddleware(config ...LogConfig) fiber.Handler {
	cfg := DefaultLogConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	var sink *logSink
	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0755); err != nil {
			log.Printf("Error creating logs directory: %v\n", err)
		}
		sink = &logSink{path: cfg.LogFilePath}
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		if cfg.ErrorsOnly && err == nil && status < 400 {
			return nil
		}

		data := LogData{
			Timestamp:     start,
			Method:        c.Method(),
			Path:          c.Path(),
			URL:           c.OriginalURL(),
			Status:        status,
			Latency:       time.Since(start),
			IP:            c.IP(),
			UserAgent:     c.Get(fiber.HeaderUserAgent),
			ContentLength: int64(len(c.Response().Body())),
		}
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			data.RequestID = id
		}
		if claims, ok := c.Locals("user").(*Claims); ok {
			data.Username = claims.Username
			data.Permission = claims.Permission
		}
		if err != nil {
			data.Error = err.Error()
		}

		message := formatLog(cfg.Format, data)
		if cfg.Console {
			log.Println(message)
		}
		sink.write(message)

		return err
	}
}

func formatLog(format string, data LogData) string {
	if format == "json" {
		jsonData, _ := json.Marshal(data)
		return string(jsonData)
	}

	user := ""
	if data.Username != "" {
		user = " user:" + data.Username
	}
	return fmt.Sprintf("[%s] %s %s %d %s %s%s",
		data.Timestamp.Format("2006-01-02 15:04:05"),
		data.Method,
		data.Path,
		data.Status,
		data.Latency,
		data.IP,
		user,
	)
}

// RequestLogger logs every request as JSON to the console and filePath.
func RequestLogger(filePath string) fiber.Handler {
	cfg := DefaultLogConfig()
	cfg.LogFilePath = filePath
	return LoggingMiddleware(cfg)
}

// ErrorLogger writes failed requests only, next to the request log.
func ErrorLogger(filePath string) fiber.Handler {
	return LoggingMiddleware(LogConfig{
		LogFilePath: filePath,
		Format:      "json",
		SkipPaths:   []string{"/health", "/metrics"},
		ErrorsOnly:  true,
	})
}
