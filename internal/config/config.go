package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quizierra/internal/domain"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Adaptive AdaptiveConfig `mapstructure:"adaptive" validate:"required"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN          string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"min=0"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	SkillTTL time.Duration `mapstructure:"skill_ttl" validate:"min=0"`
}

// Enabled reports whether a Redis address has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Address) != ""
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Env    string `mapstructure:"env" validate:"omitempty,oneof=development production"`
	Output string `mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
}

// AdaptiveConfig holds the tunables of the skill model and the question selector.
type AdaptiveConfig struct {
	Scale                    float64       `mapstructure:"scale" validate:"gt=0"`
	KUser                    float64       `mapstructure:"k_user" validate:"gt=0"`
	KQuestion                float64       `mapstructure:"k_question" validate:"gt=0,ltfield=KUser"`
	SkillMin                 float64       `mapstructure:"skill_min" validate:"lt=0"`
	SkillMax                 float64       `mapstructure:"skill_max" validate:"gt=0"`
	DifficultyMin            float64       `mapstructure:"difficulty_min" validate:"lt=0"`
	DifficultyMax            float64       `mapstructure:"difficulty_max" validate:"gt=0"`
	DefaultSkill             float64       `mapstructure:"default_skill"`
	DefaultDifficulty        float64       `mapstructure:"default_difficulty"`
	TargetProbability        float64       `mapstructure:"target_probability" validate:"gt=0,lt=1"`
	ExcludeLastN             int           `mapstructure:"exclude_last_n" validate:"min=0"`
	MaxRetries               int           `mapstructure:"max_retries" validate:"min=0,max=20"`
	RetryDelay               time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	AdjustQuestionDifficulty bool          `mapstructure:"adjust_question_difficulty"`
}

// ModelParams projects the adaptive configuration onto the skill model parameters.
func (a AdaptiveConfig) ModelParams() domain.SkillModelParams {
	return domain.SkillModelParams{
		Scale:         a.Scale,
		KUser:         a.KUser,
		KQuestion:     a.KQuestion,
		SkillMin:      a.SkillMin,
		SkillMax:      a.SkillMax,
		DifficultyMin: a.DifficultyMin,
		DifficultyMax: a.DifficultyMax,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 20)
	v.SetDefault("server.write_timeout", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.query_timeout", "5s")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.skill_ttl", "10m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "development")
	v.SetDefault("logger.output", "stdout")

	params := domain.DefaultSkillModelParams()
	v.SetDefault("adaptive.scale", params.Scale)
	v.SetDefault("adaptive.k_user", params.KUser)
	v.SetDefault("adaptive.k_question", params.KQuestion)
	v.SetDefault("adaptive.skill_min", params.SkillMin)
	v.SetDefault("adaptive.skill_max", params.SkillMax)
	v.SetDefault("adaptive.difficulty_min", params.DifficultyMin)
	v.SetDefault("adaptive.difficulty_max", params.DifficultyMax)
	v.SetDefault("adaptive.default_skill", 0.0)
	v.SetDefault("adaptive.default_difficulty", 0.0)
	v.SetDefault("adaptive.target_probability", 0.7)
	v.SetDefault("adaptive.exclude_last_n", 20)
	v.SetDefault("adaptive.max_retries", 3)
	v.SetDefault("adaptive.retry_delay", "20ms")
	v.SetDefault("adaptive.adjust_question_difficulty", true)
}

// LoadConfig reads config.yaml (when present), applies environment overrides and validates the result.
// QUIZIERRA_CONFIG names an explicit config file.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("QUIZIERRA_CONFIG"))
}

// Load is LoadConfig with an explicit config file path. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", absPath)
	}

	cfg := fromViper(v)

	// Short names kept for deployments that predate the nested keys.
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		cfg.Redis.Address = redisAddress
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  time.Duration(v.GetInt("server.read_timeout")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("server.write_timeout")) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			DSN:          v.GetString("database.dsn"),
			QueryTimeout: v.GetDuration("database.query_timeout"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			SkillTTL: v.GetDuration("redis.skill_ttl"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("logger.level"),
			Env:    v.GetString("logger.env"),
			Output: v.GetString("logger.output"),
		},
		Adaptive: AdaptiveConfig{
			Scale:                    v.GetFloat64("adaptive.scale"),
			KUser:                    v.GetFloat64("adaptive.k_user"),
			KQuestion:                v.GetFloat64("adaptive.k_question"),
			SkillMin:                 v.GetFloat64("adaptive.skill_min"),
			SkillMax:                 v.GetFloat64("adaptive.skill_max"),
			DifficultyMin:            v.GetFloat64("adaptive.difficulty_min"),
			DifficultyMax:            v.GetFloat64("adaptive.difficulty_max"),
			DefaultSkill:             v.GetFloat64("adaptive.default_skill"),
			DefaultDifficulty:        v.GetFloat64("adaptive.default_difficulty"),
			TargetProbability:        v.GetFloat64("adaptive.target_probability"),
			ExcludeLastN:             v.GetInt("adaptive.exclude_last_n"),
			MaxRetries:               v.GetInt("adaptive.max_retries"),
			RetryDelay:               v.GetDuration("adaptive.retry_delay"),
			AdjustQuestionDifficulty: v.GetBool("adaptive.adjust_question_difficulty"),
		},
	}
}
