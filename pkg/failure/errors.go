package failure

type Severity int

// scheduler control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

type ClassifiedError interface {
	error
	Severity() Severity
}

// IsFatal reports whether err must stop the run.
// A nil error is never fatal.
func IsFatal(err ClassifiedError) bool {
	if err == nil {
		return false
	}
	return err.Severity() == SeverityFatal
}
