package mysql

import (
	"confirmation-service/internal/config"
	"confirmation-service/internal/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// New opens the MySQL connection and migrates the confirmation tables.
// TranslateError turns driver duplicate-key errors into
// gorm.ErrDuplicatedKey, which the repository relies on for short-code
// collision retries.
func New(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Order{},
		&domain.Payment{},
		&domain.Ticket{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
