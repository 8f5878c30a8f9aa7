package config

import (
	"fmt"

	dbutils "github.com/tendant/db-utils/db"
)

type DatabaseConfig struct {
	Host     string `env:"UMS_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"UMS_PG_PORT" env-default:"5432"`
	Database string `env:"UMS_PG_DATABASE" env-default:"ums_db"`
	User     string `env:"UMS_PG_USER" env-default:"ums"`
	Password string `env:"UMS_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"UMS_PG_SCHEMA" env-default:"public"`
}

func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}
