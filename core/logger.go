package core

// Logger is the app-wide logging contract.
// Implementations may interpret extra args as structured context or an error
// to report; a user.User arg identifies the affected account.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
