package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvDistributionID = "CFROUTE_DISTRIBUTION_ID"
	EnvBackendDomain  = "CFROUTE_BACKEND_DOMAIN"
	EnvRegion         = "CFROUTE_REGION"
	EnvEndpoint       = "CFROUTE_ENDPOINT"
	EnvScratchFile    = "CFROUTE_SCRATCH_FILE"
	EnvRegistryKVS    = "CFROUTE_REGISTRY_KVS_NAME"
)

// Well-known CloudFront managed policy ids.
const (
	CachingDisabledPolicyID           = "4135ea2d-6df8-44a3-9df3-4b5a84be39ad"
	AllViewerExceptHostHeaderPolicyID = "b689b0a8-53d0-40ab-baf2-68738e2966ac"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config identifies the distribution to edit and describes the origin and
// behavior to merge into it.
type Config struct {
	DistributionID string `toml:"distribution-id"`
	BackendDomain  string `toml:"backend-domain"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	ScratchFile    string `toml:"scratch-file"`

	Origin   OriginConfig   `toml:"origin"`
	Behavior BehaviorConfig `toml:"behavior"`
	Registry RegistryConfig `toml:"registry"`
}

type OriginConfig struct {
	ID                    string   `toml:"id"`
	Path                  string   `toml:"path"`
	ProtocolPolicy        string   `toml:"protocol-policy"`
	HTTPPort              int32    `toml:"http-port"`
	HTTPSPort             int32    `toml:"https-port"`
	SSLProtocols          []string `toml:"ssl-protocols"`
	ReadTimeout           int32    `toml:"read-timeout"`
	KeepaliveTimeout      int32    `toml:"keepalive-timeout"`
	ConnectionAttempts    int32    `toml:"connection-attempts"`
	ConnectionTimeout     int32    `toml:"connection-timeout"`
	OriginAccessControlID string   `toml:"origin-access-control-id"`
}

type BehaviorConfig struct {
	PathPattern           string   `toml:"path-pattern"`
	ViewerProtocolPolicy  string   `toml:"viewer-protocol-policy"`
	AllowedMethods        []string `toml:"allowed-methods"`
	CachedMethods         []string `toml:"cached-methods"`
	CachePolicyID         string   `toml:"cache-policy-id"`
	OriginRequestPolicyID string   `toml:"origin-request-policy-id"`
	Compress              bool     `toml:"compress"`
	FunctionName          string   `toml:"function-name"`
}

// RegistryConfig names the KeyValueStore that receives the routing table.
// Leaving KVSName empty disables the registry sync.
type RegistryConfig struct {
	KVSName string `toml:"kvs-name"`
}

// Default returns a Config populated with the API gateway origin and the
// /api/* behavior used by the production deployment.
func Default() Config {
	return Config{
		ScratchFile: filepath.Join(os.TempDir(), "updated-cf-config.json"),
		Origin: OriginConfig{
			ID:                 "API-Gateway-prod",
			Path:               "/prod",
			ProtocolPolicy:     "https-only",
			HTTPPort:           80,
			HTTPSPort:          443,
			SSLProtocols:       []string{"TLSv1.2", "TLSv1.1", "TLSv1"},
			ReadTimeout:        30,
			KeepaliveTimeout:   5,
			ConnectionAttempts: 3,
			ConnectionTimeout:  10,
		},
		Behavior: BehaviorConfig{
			PathPattern:           "/api/*",
			ViewerProtocolPolicy:  "redirect-to-https",
			AllowedMethods:        []string{"GET", "HEAD", "OPTIONS", "PUT", "POST", "PATCH", "DELETE"},
			CachedMethods:         []string{"GET", "HEAD"},
			CachePolicyID:         CachingDisabledPolicyID,
			OriginRequestPolicyID: AllViewerExceptHostHeaderPolicyID,
			Compress:              true,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error; flags and environment can supply everything that is required.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile loads a dotenv file into the process environment. The file is
// optional.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields with any CFROUTE_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvDistributionID, &c.DistributionID)
	set(EnvBackendDomain, &c.BackendDomain)
	set(EnvRegion, &c.Region)
	set(EnvEndpoint, &c.Endpoint)
	set(EnvScratchFile, &c.ScratchFile)
	set(EnvRegistryKVS, &c.Registry.KVSName)
}

// Validate checks that the identifying parameters are present.
func (c *Config) Validate() error {
	var missing []string
	if c.DistributionID == "" {
		missing = append(missing, "distribution-id (--distribution-id or "+EnvDistributionID+")")
	}
	if c.BackendDomain == "" {
		missing = append(missing, "backend-domain (--backend-domain or "+EnvBackendDomain+")")
	}
	if c.ScratchFile == "" {
		missing = append(missing, "scratch-file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}
