package workers

import "rentradar/models"

// LogFunc routes a worker's summary lines into the sweep_logs table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger discards everything (default).
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
