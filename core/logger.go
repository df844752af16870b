package core

// Logger is any service that can log & report app events.
// Extra args may be errors, a map[string]interface{} of fields,
// or the user.User the event relates to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
