package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mandate-matching/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// environment overlay, e.g. configs/config.production.yaml
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finalize(v)
}

func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// booleans whose zero value is not the default
	v.SetDefault("camunda.enabled", true)
	v.SetDefault("matching.coarse_prefilter", true)
	v.SetDefault("resilience.breaker_enabled", true)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Integrations.AWS.SNS.WeightsTopicARN == "" {
		if val := os.Getenv("WEIGHTS_TOPIC_ARN"); val != "" {
			cfg.Integrations.AWS.SNS.WeightsTopicARN = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "mandate-matching"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if len(cfg.Matching.DefaultWeights) == 0 {
		cfg.Matching.DefaultWeights = models.DefaultWeights().ToMap()
	}
	if cfg.Matching.CandidateCap == 0 {
		cfg.Matching.CandidateCap = 100
	}
	if cfg.Matching.CandidateSource == "" {
		cfg.Matching.CandidateSource = CandidateSourcePostgres
	}
	if cfg.Matching.CompaniesIndex == "" {
		cfg.Matching.CompaniesIndex = "companies"
	}
	if cfg.Matching.LearningRate == 0 {
		cfg.Matching.LearningRate = 0.05
	}
	if cfg.Matching.RecomputeSchedule == "" {
		cfg.Matching.RecomputeSchedule = "@every 15m"
	}
	if cfg.Matching.RecomputeConcurrency == 0 {
		cfg.Matching.RecomputeConcurrency = 4
	}
	if cfg.Matching.LockTTL == 0 {
		cfg.Matching.LockTTL = 120000
	}
	if cfg.Matching.WeightsCacheTTL == 0 {
		cfg.Matching.WeightsCacheTTL = 600000
	}

	if cfg.Resilience.RetryMaxAttempts == 0 {
		cfg.Resilience.RetryMaxAttempts = 3
	}
	if cfg.Resilience.RetryInitialBackoff == 0 {
		cfg.Resilience.RetryInitialBackoff = 100
	}
	if cfg.Resilience.RetryMaxBackoff == 0 {
		cfg.Resilience.RetryMaxBackoff = 400
	}
	if cfg.Resilience.RetryMultiplier == 0 {
		cfg.Resilience.RetryMultiplier = 2.0
	}
	if cfg.Resilience.BreakerMinRequests == 0 {
		cfg.Resilience.BreakerMinRequests = 10
	}
	if cfg.Resilience.BreakerFailureRatio == 0 {
		cfg.Resilience.BreakerFailureRatio = 0.5
	}
	if cfg.Resilience.BreakerOpenTimeout == 0 {
		cfg.Resilience.BreakerOpenTimeout = 30000
	}
	if cfg.Resilience.BreakerHalfOpenMaxCalls == 0 {
		cfg.Resilience.BreakerHalfOpenMaxCalls = 2
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "eu-west-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.RegistryPath == "" {
		cfg.RegistryPath = "configs/activity-registry.json"
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is true")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Matching.CandidateSource {
	case CandidateSourcePostgres:
	case CandidateSourceElasticsearch:
		if len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch candidate source")
		}
	default:
		return fmt.Errorf("matching.candidate_source must be %q or %q, got %q",
			CandidateSourcePostgres, CandidateSourceElasticsearch, cfg.Matching.CandidateSource)
	}

	if _, err := models.WeightsFromMap(cfg.Matching.DefaultWeights); err != nil {
		return fmt.Errorf("matching.default_weights: %w", err)
	}
	if cfg.Matching.LearningRate < 0 || cfg.Matching.LearningRate > 1 {
		return fmt.Errorf("matching.learning_rate must be within [0, 1]")
	}
	if cfg.Matching.CandidateCap < 0 {
		return fmt.Errorf("matching.candidate_cap must not be negative")
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.WeightsTopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.weights_topic_arn is required when sns is enabled")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// DefaultWeights returns the configured fallback weight vector.
func (c *Config) DefaultWeights() models.Weights {
	w, err := models.WeightsFromMap(c.Matching.DefaultWeights)
	if err != nil {
		return models.DefaultWeights()
	}
	return w
}
