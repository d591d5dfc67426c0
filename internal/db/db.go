package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/crowsupport/chatbridge/internal/models"
	"github.com/crowsupport/chatbridge/internal/relay"
)

// Connect opens the MySQL database and migrates the schema. Fatal on
// failure; there is nothing useful to do without the archive DB.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Agent{},
		&relay.RelayedMessage{},
		&relay.TicketRecord{},
		&relay.Page{},
	)
}
