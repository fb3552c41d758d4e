package config

import (
	"fmt"
	"net/url"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names read by the CLI. Core packages never read these.
const (
	EnvCustodyBaseUrl       = "CUSTODY_BASE_URL"
	EnvCustodyApiKey        = "CUSTODY_API_KEY"
	EnvCustodySecretKeyPath = "CUSTODY_SECRET_KEY_PATH"
	EnvVaultAccountId       = "CUSTODY_VAULT_ACCOUNT_ID"
	EnvAssetSymbol          = "CUSTODY_ASSET"
	EnvRpcUrl               = "CUSTODY_RPC_URL"
	EnvPersistenceType      = "CUSTODY_PERSISTENCE_TYPE"
	EnvDebug                = "CUSTODY_DEBUG"
)

const (
	DefaultPollInterval          = 5 * time.Second
	DefaultMaxPollAttempts       = 120
	DefaultRequiredConfirmations = 1
	DefaultMaxChainErrors        = 10
	DefaultRequestTimeout        = 30 * time.Second
	DefaultRateLimit             = 5.0
	DefaultBurst                 = 10
)

type CustodyEnvironment string

const (
	CustodyEnvironment_Production CustodyEnvironment = "production"
	CustodyEnvironment_Sandbox    CustodyEnvironment = "sandbox"
)

var CustodyBaseUrls = map[CustodyEnvironment]string{
	CustodyEnvironment_Production: "https://api.fireblocks.io",
	CustodyEnvironment_Sandbox:    "https://sandbox-api.fireblocks.io",
}

// GetBaseUrlForEnvironment returns the custody API base URL for a named environment.
func GetBaseUrlForEnvironment(env CustodyEnvironment) (string, error) {
	u, ok := CustodyBaseUrls[env]
	if !ok {
		return "", fmt.Errorf("unsupported custody environment: %s", env)
	}
	return u, nil
}

// CustodyConfig is the opaque credential and transport configuration handed to
// the custody client at construction time.
type CustodyConfig struct {
	BaseUrl        string        `json:"baseUrl" yaml:"baseUrl"`
	ApiKey         string        `json:"apiKey" yaml:"apiKey"`
	SecretKeyPem   []byte        `json:"-" yaml:"-"`
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
	// RateLimit is the sustained requests per second allowed against the API.
	RateLimit float64 `json:"rateLimit" yaml:"rateLimit"`
	Burst     int     `json:"burst" yaml:"burst"`
}

func DefaultCustodyConfig() *CustodyConfig {
	return &CustodyConfig{
		BaseUrl:        CustodyBaseUrls[CustodyEnvironment_Production],
		RequestTimeout: DefaultRequestTimeout,
		RateLimit:      DefaultRateLimit,
		Burst:          DefaultBurst,
	}
}

func (cc *CustodyConfig) Validate() error {
	var allErrors field.ErrorList
	if cc.BaseUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("baseUrl"), "baseUrl is required"))
	} else if u, err := url.Parse(cc.BaseUrl); err != nil || u.Scheme == "" || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("baseUrl"), cc.BaseUrl, "baseUrl must be an absolute URL"))
	}
	if cc.ApiKey == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("apiKey"), "apiKey is required"))
	}
	if len(cc.SecretKeyPem) == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("secretKey"), "secretKey is required"))
	}
	if cc.RequestTimeout < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestTimeout"), cc.RequestTimeout.String(), "requestTimeout cannot be negative"))
	}
	if cc.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), cc.RateLimit, "rateLimit cannot be negative"))
	}
	if cc.RateLimit > 0 && cc.Burst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("burst"), cc.Burst, "burst must be at least 1 when rateLimit is set"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// PollConfig bounds a poll loop: at most MaxAttempts fetches, one every Interval.
type PollConfig struct {
	Interval    time.Duration `json:"interval" yaml:"interval"`
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultMaxPollAttempts,
	}
}

// Bound is the hard ceiling on time spent polling, ignoring request latency.
func (pc PollConfig) Bound() time.Duration {
	return time.Duration(pc.MaxAttempts) * pc.Interval
}

func (pc PollConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if pc.Interval <= 0 {
		allErrors = append(allErrors, field.Invalid(path.Child("interval"), pc.Interval.String(), "interval must be positive"))
	}
	if pc.MaxAttempts < 1 {
		allErrors = append(allErrors, field.Invalid(path.Child("maxAttempts"), pc.MaxAttempts, "maxAttempts must be at least 1"))
	}
	return allErrors
}

// SignerConfig identifies the vault/asset the signer acts for and how it polls.
type SignerConfig struct {
	VaultAccountId string     `json:"vaultAccountId" yaml:"vaultAccountId"`
	AssetSymbol    string     `json:"assetSymbol" yaml:"assetSymbol"`
	Poll           PollConfig `json:"poll" yaml:"poll"`
	// Note prefixes the custody-side note attached to every signing job.
	Note string `json:"note" yaml:"note"`
}

func DefaultSignerConfig(vaultAccountId, assetSymbol string) *SignerConfig {
	return &SignerConfig{
		VaultAccountId: vaultAccountId,
		AssetSymbol:    assetSymbol,
		Poll:           DefaultPollConfig(),
	}
}

func (sc *SignerConfig) Validate() error {
	var allErrors field.ErrorList
	if sc.VaultAccountId == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("vaultAccountId"), "vaultAccountId is required"))
	}
	if sc.AssetSymbol == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("assetSymbol"), "assetSymbol is required"))
	}
	allErrors = append(allErrors, sc.Poll.validate(field.NewPath("poll"))...)
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// MonitorConfig drives both phases of transaction monitoring.
type MonitorConfig struct {
	Poll                  PollConfig `json:"poll" yaml:"poll"`
	RequiredConfirmations uint64     `json:"requiredConfirmations" yaml:"requiredConfirmations"`
	// MaxChainErrors is the number of consecutive chain query failures tolerated
	// before phase two gives up.
	MaxChainErrors int `json:"maxChainErrors" yaml:"maxChainErrors"`
}

func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Poll:                  DefaultPollConfig(),
		RequiredConfirmations: DefaultRequiredConfirmations,
		MaxChainErrors:        DefaultMaxChainErrors,
	}
}

func (mc *MonitorConfig) Validate() error {
	allErrors := mc.Poll.validate(field.NewPath("poll"))
	if mc.MaxChainErrors < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxChainErrors"), mc.MaxChainErrors, "maxChainErrors must be at least 1"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

// PersistenceConfig selects the audit journal backend.
type PersistenceConfig struct {
	Type           PersistenceType `json:"type" yaml:"type"`
	DataPath       string          `json:"dataPath" yaml:"dataPath"`
	RedisAddress   string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string          `json:"-" yaml:"-"`
	RedisDB        int             `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string          `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

func (pc *PersistenceConfig) Validate() error {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), pc.RedisDB, "redisDb must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), pc.Type,
			[]PersistenceType{PersistenceType_Memory, PersistenceType_Badger, PersistenceType_Redis}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
