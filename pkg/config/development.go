package config

func loadDevelopmentConfig(cfg *Config) {
	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./hondana.db"
	cfg.ServerHost = "localhost"
}
