package config

import "os"

func loadProductionConfig(cfg *Config) {
	cfg.DatabaseFilePath = "/data/hondana.db"
	cfg.ServerHost = "0.0.0.0"

	if dir := os.Getenv("BACKUP_DIRECTORY"); dir != "" {
		cfg.BackupDirectory = dir
	}
	if dir := os.Getenv("COVER_CACHE_DIRECTORY"); dir != "" {
		cfg.CoverCacheDirectory = dir
	}
	if path := os.Getenv("DATABASE_FILE_PATH"); path != "" {
		cfg.DatabaseFilePath = path
	}
}
