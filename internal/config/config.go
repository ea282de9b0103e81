// Package config resolves the run configuration from flags, environment
// and the optional .testpackage.yaml file, and validates flag
// combinations before anything runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/testpack/testpack/pkg/coverage"
)

// EnvPackage supplies the discovery pattern when no CLI value is given.
const EnvPackage = "TESTPACK_PACKAGE"

// configFile is probed in the working directory.
const configFile = ".testpackage.yaml"

// ErrQuietAndVerbose is the mutually-exclusive-flags violation.
var ErrQuietAndVerbose = errors.New("Quiet and Verbose flags cannot be used simultaneously")

// Shard assigns this invocation one partition of the test classes.
type Shard struct {
	Index int
	Total int
}

// ParseShard parses "i/n" shard notation.
func ParseShard(s string) (*Shard, error) {
	idx := strings.Index(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return nil, fmt.Errorf("config: malformed shard %q (expected i/n)", s)
	}
	i, err := strconv.Atoi(s[:idx])
	if err != nil {
		return nil, fmt.Errorf("config: malformed shard %q: %w", s, err)
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("config: malformed shard %q: %w", s, err)
	}
	if n <= 0 || i < 0 || i >= n {
		return nil, fmt.Errorf("config: invalid shard %d/%d", i, n)
	}
	return &Shard{Index: i, Total: n}, nil
}

// Config is the resolved run configuration.
type Config struct {
	// Package is the discovery selector pattern.
	Package string

	Quiet    bool
	Verbose  bool
	FailFast bool

	Shard *Shard

	// Optimizer targets; at most one may be set.
	OptimizeCoverage  *float64
	OptimizeRuntimeMS *int64
	OptimizeCount     *int

	// StoreDir holds the persisted coverage repository.
	StoreDir string

	// TestPackages are package prefixes treated as test code when a
	// failure report hunts for the suspect frame.
	TestPackages []string
}

// fileConfig is the .testpackage.yaml shape.
type fileConfig struct {
	Package      string   `yaml:"package,omitempty"`
	StoreDir     string   `yaml:"store_dir,omitempty"`
	TestPackages []string `yaml:"test_packages,omitempty"`
}

// Load builds a Config from defaults, then the local config file, then
// the environment. CLI flags are merged on top by the command layer.
func Load() *Config {
	cfg := &Config{StoreDir: coverage.DefaultStoreDir}

	if data, err := os.ReadFile(configFile); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring malformed %s: %v\n", configFile, err)
		} else {
			if fc.Package != "" {
				cfg.Package = fc.Package
			}
			if fc.StoreDir != "" {
				cfg.StoreDir = fc.StoreDir
			}
			cfg.TestPackages = fc.TestPackages
		}
	}

	if pkg := os.Getenv(EnvPackage); pkg != "" {
		cfg.Package = pkg
	}
	return cfg
}

// Validate rejects contradictory or malformed settings. Violations are
// configuration errors: surfaced once, before any test runs.
func (c *Config) Validate() error {
	if c.Quiet && c.Verbose {
		return ErrQuietAndVerbose
	}

	targets := 0
	if c.OptimizeCoverage != nil {
		targets++
		if *c.OptimizeCoverage <= 0 || *c.OptimizeCoverage > 1 {
			return fmt.Errorf("config: coverage target %v outside (0,1]", *c.OptimizeCoverage)
		}
	}
	if c.OptimizeRuntimeMS != nil {
		targets++
		if *c.OptimizeRuntimeMS <= 0 {
			return fmt.Errorf("config: runtime target %d ms must be positive", *c.OptimizeRuntimeMS)
		}
	}
	if c.OptimizeCount != nil {
		targets++
		if *c.OptimizeCount <= 0 {
			return fmt.Errorf("config: test-count target %d must be positive", *c.OptimizeCount)
		}
	}
	if targets > 1 {
		return errors.New("config: only one optimizer target may be set")
	}

	if c.Package == "" {
		return errors.New("config: no test package selector given")
	}
	return nil
}
