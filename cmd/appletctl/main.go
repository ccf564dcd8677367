// Command appletctl creates, versions and inspects applets against the
// configured store.
package main

import (
	"errors"
	"fmt"
	"os"

	"appletcore/pkg/domain"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
	exitConflict   = 3
	exitNotFound   = 4
	exitTimeout    = 5
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(exitCode(err))
	}
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), domain.IsValidation(err):
		return exitValidation
	case domain.IsConflict(err):
		return exitConflict
	case domain.IsNotFound(err):
		return exitNotFound
	case domain.IsTimeout(err):
		return exitTimeout
	default:
		return exitError
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
