package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/services"
	"member_portal_echo/internal/tasks"
)

// Seeds a scheduled task, e.g. the recurring enrollment expiry sweep:
//
//	schedule_task -task_name expire_enrollments -arguments '{}' \
//	  -due "2026-01-01 00:00" -tasktype recurring -recurring "FREQ=HOURLY"
func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04)")
	taskType := flag.String("tasktype", "onetime", "Task type (optional, default: onetime)")
	recurring := flag.String("recurring", "", "Recurring interval rule (optional, RFC 5545 RRULE)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts (optional, default: 3)")

	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := services.InitDB(dsn)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatalf("Invalid JSON arguments: %v", err)
	}

	due, err := time.ParseInLocation("2006-01-02 15:04", *dueStr, time.Local)
	if err != nil {
		log.Fatalf("Invalid due date: %v", err)
	}

	var recurringInterval *string
	if *recurring != "" {
		recurringInterval = recurring
	}

	task, err := tasks.BuildScheduledTask(
		*taskName,
		args,
		due,
		recurringInterval,
		models.ScheduledTaskType(*taskType),
		*maxAttempt,
	)
	if err != nil {
		log.Fatalf("Failed to build task: %v", err)
	}

	if err := db.Create(task).Error; err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	log.Printf("Scheduled task %q (ID: %d), due %s", task.TaskName, task.ID, task.Due)
}
