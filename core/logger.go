package core

// Logger logs messages with optional args.
// args may contain an error, a map[string]interface{} of extras, and the user.User the message is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Recorder collects domain metrics.
type Recorder interface {
	// RecordTransition counts a workflow state change of entity.
	RecordTransition(entity, from, to string)
	// RecordOutcome adds n to the counter of op ending with outcome (created, skipped, failed...).
	RecordOutcome(op, outcome string, n int)
}

type nopRecorder struct{}

// NopRecorder discards all metrics.
var NopRecorder Recorder = nopRecorder{}

func (nopRecorder) RecordTransition(string, string, string) {}
func (nopRecorder) RecordOutcome(string, string, int)       {}
