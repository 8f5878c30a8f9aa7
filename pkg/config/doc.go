// Package config holds the env-tagged configuration groups of the service.
//
// Every group is read with cleanenv, after an optional .env file has been
// loaded with godotenv. Variables already set in the environment win over the
// .env file.
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//		slog.Error("Failed loading config", "err", err)
//		os.Exit(1)
//	}
//	pool, err := dbutils.NewDbPool(ctx, cfg.DatabaseConfig.ToDbConfig())
//
// Durations accept the ISO-8601 form (PT15M, P1D) as well as Go durations
// (15m, 24h).
package config
