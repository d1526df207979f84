package main

import (
	"log"

	"confirmation-service/internal/config"
	mmysql "confirmation-service/internal/infra/mysql"
	"confirmation-service/internal/seeds"
)

func main() {
	cfg := config.Load()

	db, err := mmysql.New(cfg)
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	order, err := seeds.Run(db)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Printf("seeded order %s (external_id order_%s)", order.ID, order.ID)
	log.Printf(`trigger: curl -X POST localhost:8080/webhooks/xendit -d '{"external_id":"order_%s","id":"inv_demo","status":"PAID"}'`, order.ID)
}
