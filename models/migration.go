package models

import (
	"log"

	"github.com/stocklinkhq/stocklink_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Item{},
		&Order{}, &OrderItem{},
		&Activity{},
		&OrderSchedule{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
