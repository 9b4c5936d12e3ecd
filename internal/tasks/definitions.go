package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Register general tasks
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register enrollment tasks
	RegisterHandler(ExpireEnrollmentsTask.TaskID(), ExpireEnrollmentsTask.HandleExecution)

	// Register notification tasks
	RegisterHandler(PaymentReminderTask.TaskID(), PaymentReminderTask.HandleExecution)
}
