package config

import "time"

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.FetchBaseDelay = time.Millisecond
	cfg.FetchMaxDelay = 10 * time.Millisecond
	cfg.ServerHost = "localhost"
	cfg.WorkerProcesses = 1
}
