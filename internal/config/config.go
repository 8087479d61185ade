// Package config loads the project configuration: compiler version, networks
// and the accounts used to sign deployments.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default values mirror the project's Hardhat configuration.
const (
	DefaultSolidityVersion = "0.8.18"
	DefaultNetwork         = "goerli"
	DefaultContract        = "Evaluator"
	DefaultEvaluatorOwner  = "0xf4728721157A58b0509c8c109Ec2AF726B562D6A"
	DefaultGasMultiplier   = 130
)

var (
	ErrNoCompilerVersion = errors.New("config: solidity.version is required")
	ErrMultipleCompilers = errors.New("config: exactly one solidity version must be configured")
	ErrNoNetworks        = errors.New("config: at least one network must be configured")
	ErrUnknownNetwork    = errors.New("config: unknown network")
	ErrMissingURL        = errors.New("config: network url is empty")
	ErrNoAccounts        = errors.New("config: network has no accounts")
)

// Config holds the whole project configuration.
type Config struct {
	Solidity       SolidityConfig           `mapstructure:"solidity" yaml:"solidity"`
	DefaultNetwork string                   `mapstructure:"defaultNetwork" yaml:"defaultNetwork"`
	Networks       map[string]NetworkConfig `mapstructure:"networks" yaml:"networks"`
	Paths          PathsConfig              `mapstructure:"paths" yaml:"paths"`
	Deploy         DeployConfig             `mapstructure:"deploy" yaml:"deploy"`
}

// SolidityConfig selects the compiler.
type SolidityConfig struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	Compiler  string          `mapstructure:"compiler" yaml:"compiler"` // path to the solc binary
	Optimizer OptimizerConfig `mapstructure:"optimizer" yaml:"optimizer"`
}

// OptimizerConfig holds solc optimizer settings.
type OptimizerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Runs    int  `mapstructure:"runs" yaml:"runs"`
}

// NetworkConfig is a network entry as written in the config file. URL and
// Accounts may reference environment variables (${GOERLI_URL}).
type NetworkConfig struct {
	URL           string   `mapstructure:"url" yaml:"url"`
	Accounts      []string `mapstructure:"accounts" yaml:"accounts"`
	ChainID       uint64   `mapstructure:"chainId" yaml:"chainId,omitempty"`
	GasMultiplier uint64   `mapstructure:"gasMultiplier" yaml:"gasMultiplier,omitempty"`
	GasPrice      string   `mapstructure:"gasPrice" yaml:"gasPrice,omitempty"`
}

// PathsConfig holds project directories.
type PathsConfig struct {
	Sources     string `mapstructure:"sources" yaml:"sources"`
	Artifacts   string `mapstructure:"artifacts" yaml:"artifacts"`
	FoundryOut  string `mapstructure:"foundryOut" yaml:"foundryOut"`
	Deployments string `mapstructure:"deployments" yaml:"deployments"`
}

// DeployConfig holds the default deployment request.
type DeployConfig struct {
	Contract string   `mapstructure:"contract" yaml:"contract"`
	Args     []string `mapstructure:"args" yaml:"args"`
}

// Network is a resolved network entry: environment references expanded and
// required fields checked.
type Network struct {
	Name          string
	URL           string
	Accounts      []string
	ChainID       uint64
	GasMultiplier uint64
	GasPrice      string
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit config file. When empty, evaluator.yaml is
	// searched for in Dir and Dir/config.
	ConfigFile string
	// Dir is the project directory. Defaults to the working directory.
	Dir string
	// EnvFile is the dotenv file to load. Defaults to Dir/.env.
	EnvFile string
}

// Load reads .env, the optional config file and EVALUATOR_* environment
// overrides, then validates the result.
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = filepath.Join(dir, ".env")
	}
	// Existing process variables take precedence over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("evaluator")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(filepath.Join(dir, "config"))
	}

	v.SetEnvPrefix("EVALUATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	_ = v.BindEnv("defaultNetwork", "EVALUATOR_NETWORK")
	_ = v.BindEnv("solidity.version", "EVALUATOR_SOLIDITY_VERSION")
	_ = v.BindEnv("solidity.compiler", "EVALUATOR_SOLC")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults and env vars describe the project.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Paths = cfg.Paths.under(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solidity.version", DefaultSolidityVersion)
	v.SetDefault("solidity.compiler", "solc")
	v.SetDefault("solidity.optimizer.enabled", false)
	v.SetDefault("solidity.optimizer.runs", 200)

	v.SetDefault("defaultNetwork", DefaultNetwork)
	v.SetDefault("networks", map[string]any{
		"goerli": map[string]any{
			"url":      "${GOERLI_URL}",
			"accounts": []string{"${PRIVATE_KEY}"},
		},
	})

	v.SetDefault("paths.sources", "contracts")
	v.SetDefault("paths.artifacts", "artifacts")
	v.SetDefault("paths.foundryOut", "out")
	v.SetDefault("paths.deployments", "deployments")

	v.SetDefault("deploy.contract", DefaultContract)
	v.SetDefault("deploy.args", []string{DefaultEvaluatorOwner})
}

func (p PathsConfig) under(dir string) PathsConfig {
	join := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(dir, path)
	}
	return PathsConfig{
		Sources:     join(p.Sources),
		Artifacts:   join(p.Artifacts),
		FoundryOut:  join(p.FoundryOut),
		Deployments: join(p.Deployments),
	}
}

// Validate checks the invariants every configuration must satisfy regardless
// of which network is selected.
func (c *Config) Validate() error {
	version := strings.TrimSpace(c.Solidity.Version)
	if version == "" {
		return ErrNoCompilerVersion
	}
	if strings.ContainsAny(version, ", ") {
		return fmt.Errorf("%w: got %q", ErrMultipleCompilers, version)
	}
	if len(c.Networks) == 0 {
		return ErrNoNetworks
	}
	if c.DefaultNetwork != "" {
		if _, ok := c.lookup(c.DefaultNetwork); !ok {
			return fmt.Errorf("%w: defaultNetwork %q", ErrUnknownNetwork, c.DefaultNetwork)
		}
	}
	return nil
}

// lookup finds a network entry by name. Viper folds map keys to lower case,
// so names match case-insensitively.
func (c *Config) lookup(name string) (string, bool) {
	if _, ok := c.Networks[name]; ok {
		return name, true
	}
	for key := range c.Networks {
		if strings.EqualFold(key, name) {
			return key, true
		}
	}
	return "", false
}

// NetworkName resolves name, or DefaultNetwork when empty, to the key of a
// configured network without requiring its URL or accounts to be set.
func (c *Config) NetworkName(name string) (string, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	key, ok := c.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q (configured: %s)", ErrUnknownNetwork, name, strings.Join(c.NetworkNames(), ", "))
	}
	return key, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Network resolves a network entry. An empty name selects DefaultNetwork.
func (c *Config) Network(name string) (*Network, error) {
	name, err := c.NetworkName(name)
	if err != nil {
		return nil, err
	}
	entry := c.Networks[name]

	url := os.ExpandEnv(entry.URL)
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: %s%s", ErrMissingURL, name, envHint(entry.URL))
	}

	accounts := make([]string, 0, len(entry.Accounts))
	for _, raw := range entry.Accounts {
		if account := strings.TrimSpace(os.ExpandEnv(raw)); account != "" {
			accounts = append(accounts, account)
		}
	}
	if len(accounts) == 0 {
		hint := ""
		if len(entry.Accounts) > 0 {
			hint = envHint(entry.Accounts[0])
		}
		return nil, fmt.Errorf("%w: %s%s", ErrNoAccounts, name, hint)
	}

	multiplier := entry.GasMultiplier
	if multiplier == 0 {
		multiplier = DefaultGasMultiplier
	}

	return &Network{
		Name:          name,
		URL:           url,
		Accounts:      accounts,
		ChainID:       entry.ChainID,
		GasMultiplier: multiplier,
		GasPrice:      entry.GasPrice,
	}, nil
}

var envRef = regexp.MustCompile(`\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?`)

// envHint names the environment variable a raw value refers to, if any.
func envHint(raw string) string {
	m := envRef.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return fmt.Sprintf(" (set %s)", m[1])
}
