// Package config loads the gridgate properties file.
//
// A configuration names the grid endpoint (host, port, zone, resource), the
// negotiation policies used at login, an optional system account, the three
// command log locations and, for the embedded grid, the catalog and content
// back ends.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (GRIDGATE_*, dots replaced by underscores)
//  2. The properties file
//  3. Default values
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the default name of the configuration file.
const FileName = "gridgate.properties"

// ErrNoSystemAccount is returned by SystemAccount when no system credentials
// are configured.
var ErrNoSystemAccount = errors.New("no system account configured")

// Configuration is a loaded and validated gridgate configuration. It is not
// modified after loading.
type Configuration struct {
	// Host is the grid endpoint host name
	Host string `mapstructure:"host" yaml:"host" validate:"required"`

	// Port is the grid endpoint port
	Port int `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`

	// Zone is the grid zone every path lives under
	Zone string `mapstructure:"zone" yaml:"zone" validate:"required"`

	// Resource is the default storage resource
	Resource string `mapstructure:"resource" yaml:"resource" validate:"required"`

	// SSLPolicy is the client side TLS negotiation policy
	SSLPolicy string `mapstructure:"sslPolicy" yaml:"sslPolicy" validate:"oneof=CS_NEG_REFUSE CS_NEG_REQUIRE CS_NEG_DONT_CARE"`

	// AuthScheme is the login mechanism
	AuthScheme string `mapstructure:"authScheme" yaml:"authScheme" validate:"oneof=STANDARD GSI KERBEROS PAM"`

	// SystemUsername and SystemPassword are the privileged account used for
	// administrative work. Both or neither must be set.
	SystemUsername string `mapstructure:"systemUsername" yaml:"systemUsername,omitempty" validate:"required_with=SystemPassword"`
	SystemPassword string `mapstructure:"systemPassword" yaml:"systemPassword,omitempty" validate:"required_with=SystemUsername"`

	// AccessLogPath, PerformanceLogPath and ErrorLogPath locate the command
	// logs. Empty paths log through the process logger.
	AccessLogPath      string `mapstructure:"accessLogPath" yaml:"accessLogPath,omitempty" validate:"omitempty,parentdir"`
	PerformanceLogPath string `mapstructure:"performanceLogPath" yaml:"performanceLogPath,omitempty" validate:"omitempty,parentdir"`
	ErrorLogPath       string `mapstructure:"errorLogPath" yaml:"errorLogPath,omitempty" validate:"omitempty,parentdir"`

	// LogLevel is the minimum process log level
	LogLevel string `mapstructure:"logLevel" yaml:"logLevel" validate:"oneof=DEBUG INFO WARN ERROR"`

	// CommandRateLimit caps gateway commands per second. Zero disables
	// throttling.
	CommandRateLimit int `mapstructure:"commandRateLimit" yaml:"commandRateLimit,omitempty" validate:"min=0"`

	// CommandBurst is the number of commands allowed above the rate at once.
	// Defaults to CommandRateLimit.
	CommandBurst int `mapstructure:"commandBurst" yaml:"commandBurst,omitempty" validate:"min=0"`

	// Backend selects the stores behind the embedded grid
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
}

// BackendConfig selects the catalog and content stores.
type BackendConfig struct {
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// S3 holds the S3 content store options. Only used when Content.Type is s3.
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// CatalogConfig selects the catalog store.
type CatalogConfig struct {
	// Type is memory or badger
	Type string `mapstructure:"type" yaml:"type" validate:"oneof=memory badger"`

	// Path is the badger database directory
	Path string `mapstructure:"path" yaml:"path,omitempty" validate:"required_if=Type badger"`
}

// ContentConfig selects the content store.
type ContentConfig struct {
	// Type is memory, fs or s3
	Type string `mapstructure:"type" yaml:"type" validate:"oneof=memory fs s3"`

	// Path is the content directory of the fs store
	Path string `mapstructure:"path" yaml:"path,omitempty" validate:"required_if=Type fs"`
}

// knownKeys lists every key read from the file. Environment overrides are
// bound for each of them.
var knownKeys = []string{
	"host",
	"port",
	"zone",
	"resource",
	"sslPolicy",
	"authScheme",
	"systemUsername",
	"systemPassword",
	"accessLogPath",
	"performanceLogPath",
	"errorLogPath",
	"logLevel",
	"commandRateLimit",
	"commandBurst",
	"backend.catalog.type",
	"backend.catalog.path",
	"backend.content.type",
	"backend.content.path",
	"backend.s3.bucket",
	"backend.s3.region",
	"backend.s3.endpoint",
	"backend.s3.accessKeyId",
	"backend.s3.secretAccessKey",
	"backend.s3.keyPrefix",
}

// numericKeys are checked before decoding so a malformed number is reported
// like any other problem instead of aborting the decode.
var numericKeys = []string{"port", "commandRateLimit", "commandBurst"}

// Parse reads a properties document, applies environment overrides and
// defaults, and validates the result.
func Parse(r io.Reader) (*Configuration, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	p, err := properties.Load(buf, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	tree, err := nest(p)
	if err != nil {
		return nil, err
	}
	warnUnknown(p)

	v := viper.New()
	setupViper(v)
	if err := v.MergeConfigMap(tree); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	var problems []string
	malformed := make(map[string]bool)
	for _, key := range numericKeys {
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			continue
		}
		n, problem := parseNumber(raw)
		if problem != "" {
			problems = append(problems, fmt.Sprintf("%s: %q %s", key, raw, problem))
			v.Set(key, 0)
			malformed[key] = true
			continue
		}
		v.Set(key, n)
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := validateConfiguration(&cfg, problems, malformed); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("Loaded configuration from %s", path)
	return cfg, nil
}

// Load returns the first candidate that exists, parses and validates. With no
// candidates DefaultSearchPaths is used. When no candidate wins the error
// lists every candidate and why it was rejected.
func Load(candidates ...string) (*Configuration, error) {
	if len(candidates) == 0 {
		candidates = DefaultSearchPaths()
	}

	var reasons []string
	for _, path := range candidates {
		cfg, err := LoadFile(path)
		if err == nil {
			return cfg, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			reasons = append(reasons, fmt.Sprintf("%s: not found", path))
			continue
		}
		logger.Warn("Skipping configuration %s: %v", path, err)
		reasons = append(reasons, err.Error())
	}

	return nil, fmt.Errorf("no usable configuration found:\n  %s", strings.Join(reasons, "\n  "))
}

// DefaultSearchPaths returns the candidate locations in search order: the
// working directory, the system-wide directory and the per-user platform
// configuration directory.
func DefaultSearchPaths() []string {
	paths := []string{
		FileName,
		filepath.Join("/etc", "gridgate", FileName),
	}
	// XDG_CONFIG_HOME or ~/.config on unix, Application Support on darwin,
	// %AppData% on windows.
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "gridgate", FileName))
	}
	return paths
}

// Account returns the account for user and password against the configured
// endpoint.
func (c *Configuration) Account(user, password string) grid.Account {
	return grid.Account{
		Host:            c.Host,
		Port:            c.Port,
		Zone:            c.Zone,
		Username:        user,
		Password:        password,
		DefaultResource: c.Resource,
		AuthScheme:      grid.AuthScheme(c.AuthScheme),
		SSLPolicy:       grid.SSLPolicy(c.SSLPolicy),
	}
}

// SystemAccount returns the configured system account.
func (c *Configuration) SystemAccount() (grid.Account, error) {
	if !c.HasSystemAccount() {
		return grid.Account{}, ErrNoSystemAccount
	}
	return c.Account(c.SystemUsername, c.SystemPassword), nil
}

// HasSystemAccount reports whether system credentials are configured.
func (c *Configuration) HasSystemAccount() bool {
	return c.SystemUsername != "" && c.SystemPassword != ""
}

// LogPaths returns the command log locations.
func (c *Configuration) LogPaths() command.LogPaths {
	return command.LogPaths{
		Access:      c.AccessLogPath,
		Performance: c.PerformanceLogPath,
		Error:       c.ErrorLogPath,
	}
}

// setupViper configures environment overrides.
// Example: GRIDGATE_BACKEND_CATALOG_TYPE=badger
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix("GRIDGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
}

// nest turns dotted property keys into the nested map viper expects. A key
// that is both a value and a prefix of another key is rejected.
func nest(p *properties.Properties) (map[string]any, error) {
	tree := map[string]any{}
	keys := p.Keys()
	sort.Strings(keys)

	for _, key := range keys {
		value, _ := p.Get(key)
		parts := strings.Split(key, ".")

		node := tree
		for i, part := range parts[:len(parts)-1] {
			switch next := node[part].(type) {
			case nil:
				child := map[string]any{}
				node[part] = child
				node = child
			case map[string]any:
				node = next
			default:
				return nil, fmt.Errorf("key %s conflicts with key %s", key, strings.Join(parts[:i+1], "."))
			}
		}

		leaf := parts[len(parts)-1]
		if _, ok := node[leaf].(map[string]any); ok {
			return nil, fmt.Errorf("key %s conflicts with keys below it", key)
		}
		node[leaf] = strings.TrimSpace(value)
	}
	return tree, nil
}

func warnUnknown(p *properties.Properties) {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[strings.ToLower(k)] = true
	}
	for _, key := range p.Keys() {
		if !known[strings.ToLower(key)] {
			logger.Warn("Ignoring unknown configuration key %q", key)
		}
	}
}

// parseNumber parses a decimal int. On failure it returns the problem text.
func parseNumber(s string) (int, string) {
	n, err := strconv.Atoi(s)
	if err == nil {
		return n, ""
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, "is out of range"
	}
	return 0, "is not a number"
}

// ============================================================================
// Rendering
// ============================================================================

// redacted replaces secrets in rendered configurations.
const redacted = command.Redacted

// WriteProperties writes the effective configuration in properties format.
// Secrets are redacted.
func (c *Configuration) WriteProperties(w io.Writer) error {
	p := properties.NewProperties()
	set := func(key, value string) {
		if value != "" {
			_, _, _ = p.Set(key, value)
		}
	}

	set("host", c.Host)
	set("port", fmt.Sprint(c.Port))
	set("zone", c.Zone)
	set("resource", c.Resource)
	set("sslPolicy", c.SSLPolicy)
	set("authScheme", c.AuthScheme)
	set("systemUsername", c.SystemUsername)
	if c.SystemPassword != "" {
		set("systemPassword", redacted)
	}
	set("accessLogPath", c.AccessLogPath)
	set("performanceLogPath", c.PerformanceLogPath)
	set("errorLogPath", c.ErrorLogPath)
	set("logLevel", c.LogLevel)
	if c.CommandRateLimit > 0 {
		set("commandRateLimit", fmt.Sprint(c.CommandRateLimit))
		set("commandBurst", fmt.Sprint(c.CommandBurst))
	}
	set("backend.catalog.type", c.Backend.Catalog.Type)
	set("backend.catalog.path", c.Backend.Catalog.Path)
	set("backend.content.type", c.Backend.Content.Type)
	set("backend.content.path", c.Backend.Content.Path)

	s3Keys := make([]string, 0, len(c.Backend.S3))
	for k := range c.Backend.S3 {
		s3Keys = append(s3Keys, k)
	}
	sort.Strings(s3Keys)
	for _, k := range s3Keys {
		value := fmt.Sprint(c.Backend.S3[k])
		if isSecretKey(k) {
			value = redacted
		}
		set("backend.s3."+k, value)
	}

	_, err := p.Write(w, properties.UTF8)
	return err
}

// Properties returns WriteProperties as a string.
func (c *Configuration) Properties() string {
	var buf bytes.Buffer
	_ = c.WriteProperties(&buf)
	return buf.String()
}

// YAML renders the effective configuration as YAML. Secrets are redacted.
func (c *Configuration) YAML() (string, error) {
	view := *c
	if view.SystemPassword != "" {
		view.SystemPassword = redacted
	}
	if len(c.Backend.S3) > 0 {
		view.Backend.S3 = make(map[string]any, len(c.Backend.S3))
		for k, v := range c.Backend.S3 {
			if isSecretKey(k) {
				v = redacted
			}
			view.Backend.S3[k] = v
		}
	}

	out, err := yaml.Marshal(&view)
	if err != nil {
		return "", fmt.Errorf("failed to render configuration: %w", err)
	}
	return string(out), nil
}

func isSecretKey(key string) bool {
	return strings.EqualFold(key, "secretAccessKey")
}
