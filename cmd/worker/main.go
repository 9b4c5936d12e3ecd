package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/services"
	"member_portal_echo/internal/tasks"
)

const tickInterval = 5 * time.Minute

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// The expiry sweep reads enrollments whose data blob is encrypted.
	if err := models.SetBlobKey([]byte(os.Getenv("ENROLLMENT_DATA_KEY"))); err != nil {
		log.Fatalf("Invalid ENROLLMENT_DATA_KEY: %v", err)
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize task registry
	tasks.DefineTasks()

	log.Println("Worker started. Waiting for next tick...")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Run once at startup, then on every tick.
	processScheduledTasks(ctx, db)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, db)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, db *gorm.DB) {
	log.Println("Checking for pending tasks...")

	var pendingTasks []models.ScheduledTask
	now := time.Now()
	if err := db.Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).Find(&pendingTasks).Error; err != nil {
		log.Printf("Error fetching pending tasks: %v", err)
		return
	}

	if len(pendingTasks) == 0 {
		log.Println("No pending tasks found.")
		return
	}

	log.Printf("Found %d pending tasks.", len(pendingTasks))

	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return
		}
		executeTask(ctx, db, task)
	}
}

func executeTask(ctx context.Context, db *gorm.DB, task models.ScheduledTask) {
	log.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	handler, found := tasks.GetHandler(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		finishTask(db, task, time.Now(), 0, "handler_not_found",
			map[string]interface{}{"error": "Handler not found"}, 1)
		return
	}

	var result map[string]interface{}
	var err error
	startTime := time.Now()

	// Retry immediately up to MaxAttempt times before giving up.
	attempts := task.MaxAttempt
	if attempts < 1 {
		attempts = 1
	}
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		result, err = handler(ctx, db, task)
		if err == nil {
			break
		}
		log.Printf("Task %s attempt %d failed: %v", task.TaskName, attempt, err)
	}
	runtimeMs := int(time.Since(startTime).Milliseconds())

	status := "success"
	if err != nil {
		status = "failure"
		result = map[string]interface{}{"error": err.Error()}
		attempt = attempts
	} else {
		log.Printf("Task %s completed successfully.", task.TaskName)
	}

	finishTask(db, task, startTime, runtimeMs, status, result, attempt)
}

// finishTask writes the history row and retargets or closes the task.
func finishTask(db *gorm.DB, task models.ScheduledTask, startTime time.Time, runtimeMs int, status string, result map[string]interface{}, attempt int) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := db.Create(&history).Error; err != nil {
		log.Printf("Failed to record task history for %s: %v", task.TaskName, err)
	}

	updates := map[string]interface{}{
		"last_run": &startTime,
	}

	switch {
	case status != "success":
		updates["status"] = models.ScheduledTaskStatusFailure
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		nextDue := task.NextDue()
		// Only retarget when the next due is actually in the future, to
		// avoid the task being executed repeatedly.
		if nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		log.Printf("Failed to update task %s: %v", task.TaskName, err)
	}
}
