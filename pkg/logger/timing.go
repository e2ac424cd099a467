package logger

import "time"

// OperationLogger logs the lifecycle of one pipeline stage with its elapsed
// time. Reconciliation runs are short-lived batches, so stage-level timing is
// all the observability they need.
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger starts timing an operation and logs its start.
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field carried on every subsequent log line.
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

// Step logs an intermediate step within the operation.
func (ol *OperationLogger) Step(step string) {
	ol.snapshot(Fields{"step": step}).Debug("Operation step")
}

// Success completes the operation and logs its duration.
func (ol *OperationLogger) Success(message string) {
	ol.snapshot(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).Info(message)
}

// Error completes the operation with an error.
func (ol *OperationLogger) Error(err error, message string) {
	ol.snapshot(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).WithError(err).Error(message)
}

func (ol *OperationLogger) snapshot(extra Fields) Logger {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return ol.logger.WithFields(fields)
}

// TimedOperation executes fn and logs its outcome with timing.
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()
	if err != nil {
		ol.Error(err, "Operation failed")
		return err
	}

	ol.Success("Operation completed")
	return nil
}
