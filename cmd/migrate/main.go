package main

import (
	"database/sql"
	"flag"
	"log"

	"campusmarket-be/internal/config"
	"campusmarket-be/internal/db"
)

var migrateFunc = db.Migrate

func main() {
	mode := flag.String("mode", db.MigrateUp, "migration mode: up or down")
	flag.Parse()

	cfg := config.LoadConfig()

	conn := db.InitDB(cfg)
	defer conn.Close()

	if err := run(conn, *mode, cfg.MigrationsPath); err != nil {
		log.Fatal(err)
	}
}

func run(conn *sql.DB, mode, migrationsDir string) error {
	log.Printf("🚀 Running migrations (%s) from %s", mode, migrationsDir)
	if err := migrateFunc(conn, migrationsDir, mode); err != nil {
		return err
	}
	log.Println("✅ Migrations complete.")
	return nil
}
