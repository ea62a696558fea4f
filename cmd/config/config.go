package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

var (
	RunAddress         string
	DatabaseURI        string
	DatabaseDriver     string
	LogLevel           string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	ValidationLanguage string
	ValidationTimeout  time.Duration
	ValidationWorkers  int
	DraftCapacity      int
	DraftsPerAccount   int
	JWTSecret          string
)

// File mirrors the optional TOML config file. Zero values keep the defaults.
type File struct {
	Server struct {
		Address   string `toml:"address"`
		JWTSecret string `toml:"jwt_secret"`
	} `toml:"server"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	DB struct {
		URI    string `toml:"uri"`
		Driver string `toml:"driver"`
	} `toml:"db"`
	OpenAI struct {
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
		Model   string `toml:"model"`
	} `toml:"openai"`
	Validation struct {
		Language         string `toml:"language"`
		TimeoutSecond    int    `toml:"timeout_seconds"`
		Workers          int    `toml:"workers"`
		DraftCapacity    int    `toml:"draft_capacity"`
		DraftsPerAccount int    `toml:"drafts_per_account"`
	} `toml:"validation"`
}

func setDefaults() {
	RunAddress = ":8080"
	DatabaseURI = ""
	DatabaseDriver = "pgx"
	LogLevel = "info"
	OpenAIAPIKey = ""
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel = "gpt-4o-mini"
	ValidationLanguage = "English"
	ValidationTimeout = 15 * time.Second
	ValidationWorkers = 4
	// Each draft can hold a photo of up to the 16MB body limit.
	DraftCapacity = 64
	DraftsPerAccount = 4
	JWTSecret = "change-me"
}

// LoadFile applies a TOML config file on top of the current settings.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	setString(&RunAddress, f.Server.Address)
	setString(&JWTSecret, f.Server.JWTSecret)
	setString(&LogLevel, f.Log.Level)
	setString(&DatabaseURI, f.DB.URI)
	setString(&DatabaseDriver, f.DB.Driver)
	setString(&OpenAIAPIKey, f.OpenAI.APIKey)
	setString(&OpenAIBaseURL, f.OpenAI.BaseURL)
	setString(&OpenAIModel, f.OpenAI.Model)
	setString(&ValidationLanguage, f.Validation.Language)
	if f.Validation.TimeoutSecond > 0 {
		ValidationTimeout = time.Duration(f.Validation.TimeoutSecond) * time.Second
	}
	if f.Validation.Workers > 0 {
		ValidationWorkers = f.Validation.Workers
	}
	if f.Validation.DraftCapacity > 0 {
		DraftCapacity = f.Validation.DraftCapacity
	}
	if f.Validation.DraftsPerAccount > 0 {
		DraftsPerAccount = f.Validation.DraftsPerAccount
	}

	return nil
}

// ParseFlags fills the settings from, in increasing priority: defaults,
// the TOML file named by -c or CONFIG, command-line flags, environment.
func ParseFlags() error {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) error {
	// .env is optional.
	_ = godotenv.Load()

	setDefaults()

	configPath := os.Getenv("CONFIG")
	for i, arg := range args {
		if (arg == "-c" || arg == "--c") && i+1 < len(args) {
			configPath = args[i+1]
		}
	}
	if configPath != "" {
		if err := LoadFile(configPath); err != nil {
			return err
		}
	}

	var ignoredConfig string
	fs.StringVar(&ignoredConfig, "c", configPath, "path to TOML config file")
	fs.StringVar(&RunAddress, "a", RunAddress, "address to run server")
	fs.StringVar(&DatabaseURI, "d", DatabaseURI, "database uri, in-memory store when empty")
	fs.StringVar(&DatabaseDriver, "driver", DatabaseDriver, "sql driver: pgx or postgres")
	fs.StringVar(&LogLevel, "l", LogLevel, "log level")
	fs.StringVar(&OpenAIBaseURL, "openai-url", OpenAIBaseURL, "vision classifier base url")
	fs.StringVar(&OpenAIModel, "openai-model", OpenAIModel, "vision classifier model")
	fs.StringVar(&ValidationLanguage, "lang", ValidationLanguage, "language of classifier replies")
	fs.DurationVar(&ValidationTimeout, "t", ValidationTimeout, "classifier request timeout")
	fs.IntVar(&ValidationWorkers, "w", ValidationWorkers, "number of validation workers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		RunAddress = envRunAddr
	}
	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		DatabaseURI = databaseURI
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		DatabaseDriver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		LogLevel = level
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		OpenAIAPIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		OpenAIBaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		OpenAIModel = model
	}
	if lang := os.Getenv("VALIDATION_LANGUAGE"); lang != "" {
		ValidationLanguage = lang
	}
	if timeout := os.Getenv("VALIDATION_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid VALIDATION_TIMEOUT: %w", err)
		}
		ValidationTimeout = d
	}
	if workers := os.Getenv("VALIDATION_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid VALIDATION_WORKERS %q", workers)
		}
		ValidationWorkers = n
	}
	if perAccount := os.Getenv("DRAFTS_PER_ACCOUNT"); perAccount != "" {
		n, err := strconv.Atoi(perAccount)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid DRAFTS_PER_ACCOUNT %q", perAccount)
		}
		DraftsPerAccount = n
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		JWTSecret = secret
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
