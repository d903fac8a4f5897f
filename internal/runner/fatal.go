package runner

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// ErrorClass groups fatal errors by cause.
type ErrorClass string

const (
	ClassConfig         ErrorClass = "config"
	ClassVerification   ErrorClass = "verification"
	ClassInfrastructure ErrorClass = "infrastructure"
)

// ExitCode is the process exit status for the class.
func (c ErrorClass) ExitCode() int {
	switch c {
	case ClassConfig:
		return 2
	case ClassVerification:
		return 3
	case ClassInfrastructure:
		return 4
	default:
		return 1
	}
}

// FatalError aborts a benchmark. A harness never reports numbers from a
// partially failed run, so there is no recoverable variant.
type FatalError struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Class, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit status: the class code for a
// FatalError, 0 for nil and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Class.ExitCode()
	}
	return 1
}

var exit = os.Exit

// DefaultOnFatal logs the error and terminates the process.
func DefaultOnFatal(log zerolog.Logger) func(*FatalError) {
	return func(fe *FatalError) {
		log.Error().Err(fe.Err).Str("class", string(fe.Class)).Str("op", fe.Op).Msg("fatal")
		exit(fe.Class.ExitCode())
	}
}
