package main

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	attendance "rostera.com.au/rostera/attendance/core"
	"rostera.com.au/rostera/attendance/web/handlers"
	"rostera.com.au/rostera/core"
	"rostera.com.au/rostera/infrastructure/communication"
	"rostera.com.au/rostera/infrastructure/devops"
	"rostera.com.au/rostera/infrastructure/filesystem"
	"rostera.com.au/rostera/infrastructure/logging"
	"rostera.com.au/rostera/web/middlewares"
)

func main() {
	godotenv.Load()
	logger := logging.GetLogger()

	dsn := os.Getenv("DSN")
	if dsn == "" {
		// fall back to the central SSM database list
		entries, err := devops.LoadDBConfig(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		if len(entries) == 0 {
			log.Fatal("no DSN configured and no database entries in SSM")
		}
		dsn = entries[0].DSN()
	}

	dm, err := core.New(dsn, intEnv("DB_MAX_CONNECTIONS", 10))
	if err != nil {
		log.Fatal(err)
	}
	defer dm.Close()

	base64Secret := os.Getenv("ROSTERA_SIGNING_SECRET")
	jwtSecret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		log.Fatal("Failed to decode JWT secret:", err)
	}

	var archiver handlers.Archiver
	if bucket := os.Getenv("UPLOAD_ARCHIVE_BUCKET"); bucket != "" {
		archiver = filesystem.NewS3Archive(bucket)
	}

	var notifier attendance.Notifier
	if slack := communication.ConnectSlack(); slack != nil {
		notifier = slack
	}

	orchestrator := attendance.NewOrchestrator(dm, logger, notifier, intEnv("UPLOAD_WORKERS", 4))

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	protected := r.Group("/api/v1.0")
	protected.Use(middlewares.Authentication(jwtSecret))
	{
		handlers.Register(protected, dm, orchestrator, handlers.Options{
			MaxFileBytes:    int64(intEnv("UPLOAD_MAX_BYTES", 10<<20)),
			MaxRows:         intEnv("UPLOAD_MAX_ROWS", 10000),
			DefaultTimezone: envOr("DEFAULT_TIMEZONE", "Australia/Brisbane"),
			Archiver:        archiver,
		})
	}

	r.Run(envOr("LISTEN_ADDR", "0.0.0.0:8090"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
