package db

import (
	"fmt"
	"time"

	"forum/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动名称，与 DATABASE_DRIVER 取值一致。
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Dialector 根据驱动名称返回对应的 gorm 方言。
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Connect 负责建立数据库连接，并带有简单的重试来等待容器就绪。
// SQLite 的 DSN 需自带 _foreign_keys=on，否则级联删除不会生效。
func Connect(driver, dsn string) (*gorm.DB, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	attempts := 10
	if driver == DriverSQLite {
		attempts = 1
	}
	var gdb *gorm.DB
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				if driver == DriverSQLite {
					// 单连接：内存库每个连接都是独立的数据库。
					sqlDB.SetMaxOpenConns(1)
					sqlDB.SetConnMaxLifetime(0)
					return gdb, nil
				}
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(500+i*200) * time.Millisecond)
		}
	}
	return nil, err
}

// Migrate 自动迁移全部表结构，外键的级联/置空规则由模型上的 constraint 标签决定。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Topic{}, &models.Room{}, &models.Message{}, &models.RefreshToken{})
}

// OpenMemory 打开一个已迁移的内存 SQLite 库，供本地试用与测试。
func OpenMemory() (*gorm.DB, error) {
	gdb, err := Connect(DriverSQLite, "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
