package db

import "github.com/smallbiznis/coopledger/internal/config"

func configFor(kind string) config.Config {
	return config.Config{
		DBType:   kind,
		DBHost:   "localhost",
		DBPort:   "5432",
		DBName:   "coopledger",
		DBUser:   "postgres",
		DBPath:   "test.db",
		DBSSLMode: "disable",
	}
}
