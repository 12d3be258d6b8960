package main

import (
	"context"
	"flag"
	"log"
	"time"

	"applicant-tracker/application"
	"applicant-tracker/infrastructure"
)

func main() {
	cfg := infrastructure.LoadConfig()

	driver := flag.String("driver", cfg.DBDriver, "database driver (mysql, postgres, sqlite)")
	dsn := flag.String("dsn", cfg.DBDSN, "database DSN")
	flag.Parse()

	logger := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := infrastructure.NewDatabase(*driver, *dsn, logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := application.NewSeeder(db, infrastructure.NewBcryptHasher(), logger).Seed(ctx)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	if report.AdminCreated {
		logger.Infof("admin created: %s / %s", application.DefaultAdminUsername, application.DefaultAdminPassword)
	} else {
		logger.Info("admin already exists")
	}
	if report.JobCreated {
		logger.Info("default job created")
	} else {
		logger.Info("an active job already exists")
	}
	logger.Info("database seeding completed")
}
