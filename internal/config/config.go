package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.json"

type MongoConfig struct {
	Host               string `json:"host" yaml:"host"`
	Port               uint64 `json:"port" yaml:"port"`
	Username           string `json:"username" yaml:"username"`
	Password           string `json:"password" yaml:"password"`
	Database           string `json:"database" yaml:"database"`
	UseTLS             bool   `json:"use_tls" yaml:"use_tls"`
	ConnectTimeout     string `json:"connect_timeout" yaml:"connect_timeout"`
	SocketTimeout      string `json:"socket_timeout" yaml:"socket_timeout"`
	ConnectIdleTimeout string `json:"connect_idle_timeout" yaml:"connect_idle_timeout"`
	Heartbeat          string `json:"heartbeat" yaml:"heartbeat"`
	MinPoolSize        uint64 `json:"min_pool_size" yaml:"min_pool_size"`
	MaxPoolSize        uint64 `json:"max_pool_size" yaml:"max_pool_size"`
}

type StoreConfig struct {
	// Driver is one of memory, mongo or sqlite.
	Driver           string `json:"driver" yaml:"driver"`
	SQLitePath       string `json:"sqlite_path" yaml:"sqlite_path"`
	ConnectRetries   uint64 `json:"connect_retries" yaml:"connect_retries"`
	OperationTimeout string `json:"operation_timeout" yaml:"operation_timeout"`
	// CacheSize bounds the attempt cache in front of mongo and sqlite; 0 disables it.
	CacheSize int         `json:"cache_size" yaml:"cache_size"`
	CacheTTL  string      `json:"cache_ttl" yaml:"cache_ttl"`
	Mongo     MongoConfig `json:"mongo" yaml:"mongo"`
}

type SessionConfig struct {
	// Version forces a protocol version ("1.2" or "2004"); empty means detect.
	Version     string `json:"version" yaml:"version"`
	LearnerID   string `json:"learner_id" yaml:"learner_id"`
	LearnerName string `json:"learner_name" yaml:"learner_name"`
	CourseID    string `json:"course_id" yaml:"course_id"`
	// ExposedVersions lists the runtime APIs the embedded LMS offers.
	ExposedVersions []string `json:"exposed_versions" yaml:"exposed_versions"`
}

type HTTPConfig struct {
	Listen       string `json:"listen" yaml:"listen"`
	ReadTimeout  string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `json:"write_timeout" yaml:"write_timeout"`
}

type Config struct {
	AppName   string        `json:"app_name" yaml:"app_name"`
	DebugMode bool          `json:"debug_mode" yaml:"debug_mode"`
	LogDir    string        `json:"log_dir" yaml:"log_dir"`
	Session   SessionConfig `json:"session" yaml:"session"`
	Store     StoreConfig   `json:"store" yaml:"store"`
	HTTP      HTTPConfig    `json:"http" yaml:"http"`
}

var (
	config      Config
	initialized = false
	mu          sync.Mutex

	ErrConfigCreated = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
)

func DefaultConfig() Config {
	return Config{
		AppName: "scorm-session",
		LogDir:  "logs",
		Session: SessionConfig{
			LearnerID:       "learner-1",
			LearnerName:     "Learner",
			CourseID:        "course-1",
			ExposedVersions: []string{"2004", "1.2"},
		},
		Store: StoreConfig{
			Driver:           "memory",
			SQLitePath:       "data/scorm.db",
			ConnectRetries:   3,
			OperationTimeout: "5s",
			CacheSize:        64,
			CacheTTL:         "1h",
			Mongo: MongoConfig{
				Host:               "localhost",
				Port:               27017,
				Database:           "scorm",
				ConnectTimeout:     "10s",
				SocketTimeout:      "30s",
				ConnectIdleTimeout: "5m",
				Heartbeat:          "10s",
				MinPoolSize:        1,
				MaxPoolSize:        10,
			},
		},
		HTTP: HTTPConfig{
			Listen:       ":8080",
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func marshal(path string, c Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "\t")
}

func unmarshal(path string, data []byte, c *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, c)
	}
	return json.Unmarshal(data, c)
}

// ReadConfig loads the configuration at path. A missing file is written out with
// defaults and ErrConfigCreated is returned.
func ReadConfig(path string) (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		path = DefaultPath
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading configuration file: %w", err)
		}
		data, err := marshal(path, DefaultConfig())
		if err != nil {
			return Config{}, fmt.Errorf("encoding default configuration: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return Config{}, fmt.Errorf("writing default configuration: %w", err)
		}
		return DefaultConfig(), ErrConfigCreated
	}

	loaded := DefaultConfig()
	if err := unmarshal(path, bytes, &loaded); err != nil {
		return Config{}, fmt.Errorf("the configuration file is not valid: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return Config{}, err
	}

	config = loaded
	initialized = true
	return config, nil
}

// GetConfig returns the configuration loaded by the last successful ReadConfig,
// reading DefaultPath if nothing has been loaded yet.
func GetConfig() (Config, error) {
	mu.Lock()
	if initialized {
		defer mu.Unlock()
		return config, nil
	}
	mu.Unlock()
	return ReadConfig(DefaultPath)
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "mongo", "sqlite":
	default:
		return fmt.Errorf("store.driver must be memory, mongo or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return errors.New("store.sqlite_path must not be empty")
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must not be negative, got %d", c.Store.CacheSize)
	}
	if !validVersion(c.Session.Version, true) {
		return fmt.Errorf("session.version must be empty, 1.2 or 2004, got %q", c.Session.Version)
	}
	if len(c.Session.ExposedVersions) == 0 {
		return errors.New("session.exposed_versions must not be empty")
	}
	for _, v := range c.Session.ExposedVersions {
		if !validVersion(v, false) {
			return fmt.Errorf("session.exposed_versions contains invalid version %q", v)
		}
	}
	if c.Session.LearnerID == "" {
		return errors.New("session.learner_id must not be empty")
	}
	if c.Session.CourseID == "" {
		return errors.New("session.course_id must not be empty")
	}
	return nil
}

func validVersion(v string, allowEmpty bool) bool {
	switch v {
	case "1.2", "2004":
		return true
	case "":
		return allowEmpty
	}
	return false
}
