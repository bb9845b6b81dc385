// loader.go assembles the runtime configuration from, in priority order,
// the OS environment, a .env file, and AWS SSM Parameter Store. Secrets are
// referenced indirectly: a variable named FOO_SSM_PARAM holds the SSM path
// whose value becomes FOO, unless FOO is already set.
package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError carries the loading phase that failed alongside the cause so
// startup logs can distinguish a typo from an unreachable SSM.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

const (
	// Suffix marking an env var as an SSM path pointer rather than a value.
	ssmParamSuffix = "_SSM_PARAM"

	// APP_ENV value that skips secret resolution entirely.
	localEnv = "local"

	ssmResolveTimeout = 30 * time.Second
)

// env abstracts the process environment so the loader can be tested without
// mutating real variables.
type env struct {
	lookup func(key string) (string, bool)
	set    func(key, value string) error
	list   func() []string
}

func osEnv() env {
	return env{
		lookup: os.LookupEnv,
		set:    os.Setenv,
		list:   os.Environ,
	}
}

// LoadConfig builds and validates the service configuration.
//
// The process timezone is forced to UTC first; everything downstream assumes
// it. A .env file is merged in when present without overriding real env vars.
// Outside local development, *_SSM_PARAM pointers are resolved through the
// given SecretProvider before envconfig reads the final values. A nil
// provider is acceptable only when nothing needs resolving.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfig(provider, osEnv())
}

func loadConfig(provider SecretProvider, environ env) (*Config, error) {
	time.Local = time.UTC

	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if appEnv, _ := environ.lookup("APP_ENV"); appEnv != localEnv {
		if err := injectSecrets(provider, environ); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// injectSecrets finds every *_SSM_PARAM pointer whose target variable is not
// already set, fetches the pointed-at parameters in one batch, and writes the
// values into the environment under the target names. DATABASE_URL_SSM_PARAM
// therefore yields DATABASE_URL, but an explicitly exported DATABASE_URL wins.
func injectSecrets(provider SecretProvider, environ env) error {
	// target env var -> SSM path
	pending := make(map[string]string)

	for _, entry := range environ.list() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if target == key {
			continue
		}
		if _, set := environ.lookup(target); set {
			continue
		}
		pending[target] = path
	}

	if len(pending) == 0 {
		return nil
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(sortedKeys(pending), ", ")),
		}
	}

	paths := make([]string, 0, len(pending))
	for _, path := range pending {
		paths = append(paths, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for target, path := range pending {
		value, ok := values[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := environ.set(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
