package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/JonnyShabli/registry-mailer/internal/Service/fetcher"
	"github.com/JonnyShabli/registry-mailer/internal/Service/jobs"
	"github.com/JonnyShabli/registry-mailer/internal/Service/mailer"
	"github.com/JonnyShabli/registry-mailer/internal/Service/spreadsheet"
	"github.com/JonnyShabli/registry-mailer/internal/repository"
	pkghttp "github.com/JonnyShabli/registry-mailer/pkg/http"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/JonnyShabli/registry-mailer/pkg/workerpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultProject   = "registry-mailer"
	defaultPort      = "8080"
	defaultExportDir = "./data/exports"
	defaultUploadDir = "./data/uploads"
)

type Config struct {
	Logger     logster.Config     `yaml:"logger"`
	HttpServer pkghttp.Config     `yaml:"httpServer"`
	Registry   fetcher.Config     `yaml:"registry"`
	Storage    spreadsheet.Config `yaml:"storage"`
	Jobs       JobsConfig         `yaml:"jobs"`
	Tasks      repository.Config  `yaml:"tasks"`
	Smtp       mailer.Config      `yaml:"smtp"`
}

// JobsConfig selects the launch strategy. NumWorkers 0 keeps one goroutine per job.
type JobsConfig struct {
	Pool   workerpool.Config `yaml:",inline"`
	Runner jobs.Config       `yaml:",inline"`
}

// LoadConfig reads a YAML file into cfg. Variables from an optional .env file
// are loaded first and ${VAR} references in the file are expanded.
func LoadConfig(filename string, cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env failed: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg)
	if err != nil {
		return fmt.Errorf("parse %s failed: %w", filename, err)
	}

	ApplyDefaults(cfg)
	return nil
}

// ApplyDefaults fills every setting left empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Logger.Project == "" {
		cfg.Logger.Project = defaultProject
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.HttpServer.Port == "" {
		cfg.HttpServer.Port = defaultPort
	}

	if cfg.Registry.APIURL == "" {
		cfg.Registry.APIURL = fetcher.DefaultAPIURL
	}
	if cfg.Registry.MembersType == "" {
		cfg.Registry.MembersType = fetcher.DefaultMembersType
	}
	if cfg.Registry.Timeout <= 0 {
		cfg.Registry.Timeout = fetcher.DefaultTimeout
	}
	if cfg.Registry.PageDelay == 0 {
		cfg.Registry.PageDelay = fetcher.DefaultPageDelay
	}

	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = defaultExportDir
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = defaultUploadDir
	}
	if cfg.Storage.SheetName == "" {
		cfg.Storage.SheetName = spreadsheet.DefaultSheetName
	}
	if cfg.Storage.MaxUploadSize <= 0 {
		cfg.Storage.MaxUploadSize = spreadsheet.DefaultMaxUploadSize
	}

	if cfg.Smtp.DialTimeout <= 0 {
		cfg.Smtp.DialTimeout = mailer.DefaultDialTimeout
	}
}
