package server

import "time"

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations can forward the numbers to Prometheus, StatsD and the
// like.
//
// Methods are called synchronously from session goroutines and must not
// block. The server checks for a nil collector itself.
type MetricsCollector interface {
	// RecordCommand records one dispatched command. success is false when
	// the command was answered with a 4xx or 5xx reply.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records a completed data transfer. operation is the
	// command that drove it (RETR, STOR, APPE, LIST or NLST).
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records an accepted control connection.
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records a PASS outcome for user.
	RecordAuthentication(success bool, user string)
}
