package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{Package: "org.example.tests", StoreDir: ".testpackage"}
}

func TestValidate_QuietAndVerbose(t *testing.T) {
	cfg := validConfig()
	cfg.Quiet = true
	cfg.Verbose = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "Quiet and Verbose flags cannot be used simultaneously", err.Error())
}

func TestValidate_RequiresPackage(t *testing.T) {
	cfg := validConfig()
	cfg.Package = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_OptimizerTargetsAreExclusive(t *testing.T) {
	cov := 0.8
	runtimeMS := int64(30000)

	cfg := validConfig()
	cfg.OptimizeCoverage = &cov
	cfg.OptimizeRuntimeMS = &runtimeMS
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.OptimizeCoverage = &cov
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CoverageTargetRange(t *testing.T) {
	for _, v := range []float64{0, -0.5, 1.5} {
		cfg := validConfig()
		val := v
		cfg.OptimizeCoverage = &val
		assert.Error(t, cfg.Validate(), "coverage %v", v)
	}

	cfg := validConfig()
	one := 1.0
	cfg.OptimizeCoverage = &one
	assert.NoError(t, cfg.Validate())
}

func TestParseShard(t *testing.T) {
	shard, err := ParseShard("2/8")
	require.NoError(t, err)
	assert.Equal(t, &Shard{Index: 2, Total: 8}, shard)

	for _, s := range []string{"", "3", "/3", "3/", "a/b", "3/3", "-1/3", "1/0"} {
		_, err := ParseShard(s)
		assert.Error(t, err, "shard %q", s)
	}
}
