//go:build !unix

package telemetry

import "syscall"

func broadcastControl(_, _ string, _ syscall.RawConn) error { return nil }
