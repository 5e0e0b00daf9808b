package protocol

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// classifyIoErr inspects a raw network error to pick an IoKind. net doesn't
// expose a typed enum for "unreachable" vs "refused", so this follows the
// same string/syscall-probing approach the directory client's predecessor
// used to distinguish its error reasons.
func classifyIoErr(err error) IoKind {
	if err == nil {
		return IoOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return IoTimedOut
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return IoRefused
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return IoUnreachable
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return IoTimedOut
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "refused"):
		return IoRefused
	case strings.Contains(msg, "unreachable"):
		return IoUnreachable
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return IoTimedOut
	default:
		return IoOther
	}
}
