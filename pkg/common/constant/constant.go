package constant

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// EnvPrefix namespaces the environment overrides of the config file.
	EnvPrefix         = "PREDICTOR_"
	DefaultConfigPath = "configs/config.yaml"
	DefaultStream     = "sunwin"

	HistoryKeyPrefix = "history_"
	LedgerKeyPrefix  = "ledger_"
	LatestKeyPrefix  = "latest_prediction_"
)
