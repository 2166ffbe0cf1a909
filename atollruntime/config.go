package atollruntime

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/atolldev/atoll/kit/netutil"
	"github.com/joho/godotenv"
)

// Environment variable keys
const (
	envMode     = "ATOLL_MODE"
	envModeDev  = "development"
	envPort     = "PORT"
	envPortSet  = "ATOLL_PORT_HAS_BEEN_SET"
	envVitePort = "__ATOLL_VITE_PORT"
)

// GetIsDev returns true if running in development mode.
func GetIsDev() bool {
	return os.Getenv(envMode) == envModeDev
}

// SetModeToDev sets the environment to development mode.
func SetModeToDev() {
	os.Setenv(envMode, envModeDev)
}

func GetPort() int {
	p, err := strconv.Atoi(os.Getenv(envPort))
	if err != nil {
		return 0
	}
	return p
}

func SetPort(port int) {
	os.Setenv(envPort, strconv.Itoa(port))
}

var (
	appPortOnce   sync.Once
	appPortResult int
)

// MustGetAppPort returns the application port. In dev mode, finds a free
// port if the configured one is taken.
func MustGetAppPort() int {
	appPortOnce.Do(func() {
		if !GetIsDev() || os.Getenv(envPortSet) == "true" {
			p := GetPort()
			if p <= 0 {
				appPortResult = 8080
			} else {
				appPortResult = p
			}
			return
		}

		defaultPort := GetPort()
		if defaultPort <= 0 {
			defaultPort = 8080
		}

		port, err := netutil.GetFreePort(defaultPort)
		if err != nil {
			port = defaultPort
		}

		SetPort(port)
		os.Setenv(envPortSet, "true")
		appPortResult = port
	})

	return appPortResult
}

// GetViteDevURL returns the dev bundler origin, derived from the port the
// Vite process manager published, or "" outside dev mode.
func GetViteDevURL() string {
	if !GetIsDev() {
		return ""
	}
	p := os.Getenv(envVitePort)
	if p == "" {
		return ""
	}
	return "http://localhost:" + p
}

// Config is the parsed atoll.config.json.
type Config struct {
	// PagesDir is the file-system routing root, e.g. "src/pages".
	PagesDir string `json:"pagesDir"`

	// ClientEntry is the shared client entry module, e.g. "src/entry-client.ts".
	ClientEntry string `json:"clientEntry"`

	// HTMLShellFile is the HTML document every route is rendered into.
	HTMLShellFile string `json:"htmlShellFile"`

	// IslandImportSource marks island component imports during discovery.
	// Defaults to "atoll/island".
	IslandImportSource string `json:"islandImportSource,omitempty"`

	DistDir          string `json:"distDir,omitempty"`          // default "dist"
	PublicPathPrefix string `json:"publicPathPrefix,omitempty"` // default "/"

	// Vite process management
	PackageManagerBaseCmd string `json:"packageManagerBaseCmd,omitempty"` // default "npx"
	ViteConfigFile        string `json:"viteConfigFile,omitempty"`

	// RenderTimeoutMS bounds one server render. Default 10000.
	RenderTimeoutMS int `json:"renderTimeoutMs,omitempty"`
}

func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutMS) * time.Millisecond
}

// LoadConfig reads and validates the config file. A .env file alongside the
// process, when present, is folded into the environment first.
func LoadConfig(path string) (*Config, error) {
	godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IslandImportSource == "" {
		c.IslandImportSource = "atoll/island"
	}
	if c.DistDir == "" {
		c.DistDir = "dist"
	}
	if c.PublicPathPrefix == "" {
		c.PublicPathPrefix = "/"
	}
	if c.PackageManagerBaseCmd == "" {
		c.PackageManagerBaseCmd = "npx"
	}
	if c.RenderTimeoutMS == 0 {
		c.RenderTimeoutMS = 10_000
	}
}

func (c *Config) validate() error {
	if c.PagesDir == "" {
		return fmt.Errorf("pagesDir is required")
	}
	if c.ClientEntry == "" {
		return fmt.Errorf("clientEntry is required")
	}
	if c.HTMLShellFile == "" {
		return fmt.Errorf("htmlShellFile is required")
	}
	return nil
}

// New constructs the runtime struct. Panics on an invalid config; a bad
// config is programmer error, not a runtime condition.
func New(cfg *Config) *Atoll {
	if cfg == nil {
		panic("atoll: nil config")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("atoll: invalid config: %v", err))
	}
	return &Atoll{Config: cfg}
}
