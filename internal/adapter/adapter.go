package adapter

import (
	"fmt"

	"github.com/isafetyrobo/safety-agent/internal/envconf"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns a new gorm database instance, sqlite unless a postgres host is
// configured.
func New(conf *envconf.DBConf) (*gorm.DB, error) {
	gormConf := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	if conf.Host != "" && !conf.SQLLite {
		dsn := fmt.Sprintf(
			"user=%s password=%s port=%d host=%s dbname=%s sslmode=disable",
			conf.Username,
			conf.Password,
			conf.Port,
			conf.Host,
			conf.DbName,
		)

		return gorm.Open(postgres.Open(dsn), gormConf)
	}

	return gorm.Open(sqlite.Open(conf.SQLLitePath), gormConf)
}
