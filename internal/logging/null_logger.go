package logging

// NullLogger discards all messages.
type NullLogger struct{}

// NewNullLogger creates a NullLogger.
func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Verbose(string, ...interface{}) {}
func (NullLogger) Info(string, ...interface{})    {}
func (NullLogger) Error(string, ...interface{})   {}
