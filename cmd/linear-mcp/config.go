package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"linear-mcp/internal/linear"
	"linear-mcp/internal/server"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

// config is everything the process needs, resolved from flags, the
// environment and an optional env file, in that order of precedence.
type config struct {
	APIKey           string
	APIURL           string
	Timeout          time.Duration
	Transport        string
	VerifyCredential bool
	EnvFile          string
	Server           server.Config
}

type lookupFunc func(key string) (string, bool)

// errHelp is returned when --help was requested.
var errHelp = pflag.ErrHelp

func loadConfig(args []string, lookupEnv lookupFunc, usage io.Writer) (*config, error) {
	defaults := server.DefaultConfig()

	fs := pflag.NewFlagSet("linear-mcp", pflag.ContinueOnError)
	fs.SetOutput(usage)
	envFile := fs.String("env-file", ".env", "env file to read when present; never overrides the environment")
	transport := fs.String("transport", transportStdio, "MCP transport: stdio or http")
	addr := fs.String("addr", defaults.Addr, "listen address for the http transport")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	timeout := fs.Duration("timeout", linear.DefaultTimeout, "bound on each Linear API call")
	verify := fs.Bool("verify-credential", false, "check the API key with a viewer query at startup")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fileEnv, err := readEnvFile(*envFile)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	cfg := &config{
		APIURL:           linear.DefaultAPIURL,
		Timeout:          *timeout,
		Transport:        *transport,
		VerifyCredential: *verify,
		EnvFile:          *envFile,
		Server:           defaults,
	}
	cfg.Server.Addr = *addr
	cfg.Server.LogLevel = *logLevel

	if v, ok := lookup("LINEAR_API_KEY"); ok {
		cfg.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup("LINEAR_API_URL"); ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := lookup("REDIS_URL"); ok {
		cfg.Server.RedisURL = v
	}

	stringFromEnv := func(flag, key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" && !fs.Changed(flag) {
			*dst = v
		}
	}
	stringFromEnv("transport", "MCP_TRANSPORT", &cfg.Transport)
	stringFromEnv("addr", "MCP_ADDR", &cfg.Server.Addr)
	stringFromEnv("log-level", "LOG_LEVEL", &cfg.Server.LogLevel)

	durations := []struct {
		flag string
		key  string
		dst  *time.Duration
	}{
		{flag: "timeout", key: "LINEAR_TIMEOUT", dst: &cfg.Timeout},
		{key: "SESSION_TIMEOUT", dst: &cfg.Server.SessionTimeout},
		{key: "SESSION_CLEANUP_INTERVAL", dst: &cfg.Server.CleanupInterval},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" || (d.flag != "" && fs.Changed(d.flag)) {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("MCP_REQUIRE_SESSION"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MCP_REQUIRE_SESSION: %w", err)
		}
		cfg.Server.RequireSession = b
	}
	if v, ok := lookup("MCP_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.APIKey == "" {
		return errors.New("LINEAR_API_KEY is not set")
	}
	if c.Transport != transportStdio && c.Transport != transportHTTP {
		return fmt.Errorf("unknown transport %q: want stdio or http", c.Transport)
	}
	if _, err := zerolog.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Server.SessionTimeout <= 0 || c.Server.CleanupInterval <= 0 {
		return errors.New("session timeout and cleanup interval must be positive")
	}
	return nil
}

// readEnvFile returns the variables in path, or nothing if it does not exist.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vars, nil
}
