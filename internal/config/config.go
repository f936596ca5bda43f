package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingStreamURL is returned by Validate when RTSP_URL is not set.
var ErrMissingStreamURL = errors.New("missing RTSP_URL")

type Config struct {
	StreamURL     string
	KnownFacesDir string
	CacheFile     string
	UnknownDir    string
	DatabasePath  string
	ModelDir      string
	LogDirectory  string
	LogLevel      string

	// LogCooldown is the per-identity interval between Recognized events.
	LogCooldown time.Duration

	// UnknownCooldown is the global interval between unknown captures.
	UnknownCooldown time.Duration

	// MotionThreshold is the contour area (px) a frame needs to count as active.
	MotionThreshold int

	// MatchThreshold is a strict upper bound on signature distance for a match.
	MatchThreshold float64

	MotionIdleWindow  time.Duration
	ReconnectDelay    time.Duration
	AnalysisInterval  time.Duration
	FramePollInterval time.Duration
	EventQueueSize    int

	Port           int
	ViewerPassword string
	DisplayWindow  bool
	DisplayFPS     int
	MQTTBroker     string
	MQTTTopic      string
	MQTTClientID   string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return FromEnv(), nil
}

// FromEnv builds a Config from the process environment only.
func FromEnv() *Config {
	return &Config{
		StreamURL:         getEnv("RTSP_URL", ""),
		KnownFacesDir:     getEnv("KNOWN_FACES_DIR", "known_faces"),
		CacheFile:         getEnv("SIGNATURE_CACHE", "face_signatures.json"),
		UnknownDir:        getEnv("UNKNOWN_DIR", "captured_strangers"),
		DatabasePath:      getEnv("DB_PATH", "security_log.db"),
		ModelDir:          getEnv("MODEL_DIR", "models"),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		LogCooldown:       getEnvAsSeconds("LOG_COOLDOWN", 30),
		UnknownCooldown:   getEnvAsSeconds("UNKNOWN_CAPTURE_COOLDOWN", 300),
		MotionThreshold:   getEnvAsInt("MOTION_THRESHOLD", 1000),
		MatchThreshold:    getEnvAsFloat("MATCH_THRESHOLD", 0.5),
		MotionIdleWindow:  getEnvAsSeconds("MOTION_IDLE_WINDOW", 3),
		ReconnectDelay:    getEnvAsSeconds("RECONNECT_DELAY", 5),
		AnalysisInterval:  getEnvAsMillis("ANALYSIS_INTERVAL_MS", 10),
		FramePollInterval: getEnvAsMillis("FRAME_POLL_INTERVAL_MS", 100),
		EventQueueSize:    getEnvAsInt("EVENT_QUEUE_SIZE", 1024),
		Port:              getEnvAsInt("PORT", 8080),
		ViewerPassword:    getEnv("VIEWER_PASSWORD", ""),
		DisplayWindow:     getEnvAsBool("DISPLAY_WINDOW", false),
		DisplayFPS:        getEnvAsInt("DISPLAY_FPS", 15),
		MQTTBroker:        getEnv("MQTT_BROKER", ""),
		MQTTTopic:         getEnv("MQTT_TOPIC", "facewatch/alerts"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "facewatch"),
	}
}

// Validate reports configuration errors that must stop the process.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StreamURL) == "" {
		return ErrMissingStreamURL
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
