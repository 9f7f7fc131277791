package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	BackupDirectory           string
	CoverCacheDirectory       string
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	FetchBaseDelay            time.Duration
	FetchMaxAttempts          int
	FetchMaxDelay             time.Duration
	FetchTimeout              time.Duration
	GoogleBooksURL            string
	Hostname                  string
	OpenLibraryURL            string
	ServerHost                string
	ServerPort                int
	WikipediaURL              string
	WorkerProcesses           int
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		BackupDirectory:           "./backups",
		CoverCacheDirectory:       "./cache/covers",
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		FetchBaseDelay:            time.Second,
		FetchMaxAttempts:          5,
		FetchMaxDelay:             30 * time.Second,
		FetchTimeout:              10 * time.Second,
		GoogleBooksURL:            "https://www.googleapis.com/books/v1",
		Hostname:                  hostname,
		OpenLibraryURL:            "https://openlibrary.org",
		ServerPort:                3690,
		WikipediaURL:              "https://en.wikipedia.org",
		WorkerProcesses:           2,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	return cfg, nil
}
