package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines the application configuration
type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Converter ConverterConfig `koanf:"converter"`
	Parser    ParserConfig    `koanf:"parser"`
	RAGFlow   RAGFlowConfig   `koanf:"ragflow"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Debug bool `koanf:"debug"`
	// MaxUploadSize caps a single uploaded file, in bytes.
	MaxUploadSize int64 `koanf:"maxuploadsize"`
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	Version  uint   `koanf:"version"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	} `koanf:"pool"`
}

// StorageConfig locates the upload root on local disk.
type StorageConfig struct {
	UploadRoot string `koanf:"uploadroot"`
	// LargeVideoThreshold is the size above which the type deletion
	// strategy removes a video's original file, in bytes.
	LargeVideoThreshold int64 `koanf:"largevideothreshold"`
}

// ConverterConfig drives the office-to-PDF conversion engine.
type ConverterConfig struct {
	// Engine selects the conversion backend: "soffice" or "unoconv".
	// Empty means pick by platform at startup.
	Engine  string        `koanf:"engine"`
	Binary  string        `koanf:"binary"`
	Timeout time.Duration `koanf:"timeout"`
	// Output verification retries after the engine exits.
	OutputWaitAttempts int           `koanf:"outputwaitattempts"`
	OutputWaitInterval time.Duration `koanf:"outputwaitinterval"`
}

// ParserConfig points at the PDF parsing service.
type ParserConfig struct {
	URL          string        `koanf:"url" validate:"required,url"`
	Method       string        `koanf:"method"`
	Timeout      time.Duration `koanf:"timeout"`
	ReturnImages bool          `koanf:"returnimages"`
}

// RAGFlowConfig configures the knowledge-index sync client.
type RAGFlowConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url"`
	APIKey       string `koanf:"apikey"`
	DatasetID    string `koanf:"datasetid"`
	AutoParse    bool   `koanf:"autoparse"`
	ChunkMethod  string `koanf:"chunkmethod"`
	ParserConfig string `koanf:"parserconfig"`
}

// AuthConfig configures JWT issuance and verification.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwtsecret"`
	Expiry    time.Duration `koanf:"expiry"`
	// InitialAdminPassword, when set, seeds an "admin" user at startup if no
	// such user exists. Left empty, no user is ever created implicitly.
	InitialAdminPassword string `koanf:"initialadminpassword"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"server.maxuploadsize":         100 * 1024 * 1024,
		"storage.largevideothreshold":  50 * 1024 * 1024,
		"converter.timeout":            "120s",
		"converter.outputwaitattempts": 5,
		"converter.outputwaitinterval": "500ms",
		"parser.method":                "auto",
		"parser.timeout":               "600s",
		"parser.returnimages":          true,
		"ragflow.chunkmethod":          "naive",
		"auth.expiry":                  "24h",
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	fs.Parse(os.Args[1:])

	return *configPath
}
