package main

import (
	"log"
	"os"

	attendancemodel "rostera.com.au/rostera/attendance/model"
	"rostera.com.au/rostera/core"
)

// Migrates one tenant schema. The DSN must include the schema, e.g.
// user:pass@tcp(host:3306)/acme?parseTime=true
func main() {
	dsn := os.Getenv("DSN")
	if dsn == "" {
		log.Fatal("DSN is not set")
	}

	db := core.ConnectDB(dsn)

	err := db.AutoMigrate(
		&core.Employee{},
		&attendancemodel.Upload{},
		&attendancemodel.UploadRow{},
		&attendancemodel.AttendanceEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("migration complete")
}
