package config

import "fmt"

type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Matching     MatchingConfig          `mapstructure:"matching"`
	Resilience   ResilienceConfig        `mapstructure:"resilience"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	RegistryPath string                  `mapstructure:"registry_path"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single address, used when Addresses is empty
}

func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

const (
	CandidateSourcePostgres      = "postgres"
	CandidateSourceElasticsearch = "elasticsearch"
)

type MatchingConfig struct {
	DefaultWeights       map[string]float64 `mapstructure:"default_weights"`
	CandidateCap         int                `mapstructure:"candidate_cap"`
	CandidateSource      string             `mapstructure:"candidate_source"`
	CoarsePrefilter      bool               `mapstructure:"coarse_prefilter"`
	CompaniesIndex       string             `mapstructure:"companies_index"`
	LearningRate         float64            `mapstructure:"learning_rate"`
	RecomputeSchedule    string             `mapstructure:"recompute_schedule"`
	RecomputeConcurrency int                `mapstructure:"recompute_concurrency"`
	LockTTL              int                `mapstructure:"lock_ttl"`          // milliseconds
	WeightsCacheTTL      int                `mapstructure:"weights_cache_ttl"` // milliseconds
}

type ResilienceConfig struct {
	RetryMaxAttempts        int     `mapstructure:"retry_max_attempts"`
	RetryInitialBackoff     int     `mapstructure:"retry_initial_backoff"` // milliseconds
	RetryMaxBackoff         int     `mapstructure:"retry_max_backoff"`     // milliseconds
	RetryMultiplier         float64 `mapstructure:"retry_multiplier"`
	BreakerEnabled          bool    `mapstructure:"breaker_enabled"`
	BreakerMinRequests      uint32  `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio     float64 `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeout      int     `mapstructure:"breaker_open_timeout"` // milliseconds
	BreakerHalfOpenMaxCalls uint32  `mapstructure:"breaker_half_open_max_calls"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled         bool   `mapstructure:"enabled"`
			WeightsTopicARN string `mapstructure:"weights_topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
