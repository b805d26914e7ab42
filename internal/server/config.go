package server

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/policy"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Namespace  string `yaml:"namespace"`

	// IntegrityKeyphrase is the shared HMAC secret. The gateway will
	// not start without one.
	IntegrityKeyphrase string `yaml:"integrity_keyphrase"`

	// RequireRequestIntegrity rejects inbound requests that carry no
	// integrity headers. When false, headers are verified only when
	// present.
	RequireRequestIntegrity bool `yaml:"require_request_integrity"`

	// ServiceKey authenticates peer services on the token endpoint and
	// keys service-key encryption policies.
	ServiceKey string `yaml:"service_key"`

	JWTIssuer string        `yaml:"jwt_issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// Mongo settings are optional. Without a URI the gateway falls back
	// to BlobDir on disk, or an in-memory store when that is empty too.
	MongoURI        string `yaml:"mongo_uri"`
	MongoDB         string `yaml:"mongo_db"`
	BlobsCollection string `yaml:"blobs_collection"`
	BlobDir         string `yaml:"blob_dir"`

	EncryptionPolicies []policy.Rule `yaml:"encryption_policies"`
}

// LoadConfig reads a yaml config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Namespace == "" {
		c.Namespace = integrity.DefaultNamespace
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "strixun-auth"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 7 * time.Hour
	}
	if c.MongoDB == "" {
		c.MongoDB = "strixun"
	}
	if c.BlobsCollection == "" {
		c.BlobsCollection = "blobs"
	}
	if len(c.EncryptionPolicies) == 0 {
		c.EncryptionPolicies = []policy.Rule{
			{Pattern: "/api/me", Strategy: policy.StrategyJWT, Mandatory: true},
		}
	}
}
