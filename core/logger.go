package core

// Logger logs messages and reports errors.
// args may hold errors, extra data maps or the acting user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user an error happened for.
type Person struct {
	ID    string
	Email string
}
