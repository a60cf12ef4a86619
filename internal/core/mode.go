// Package core is the orchestration layer.  It composes communicators,
// sessions and capabilities into complete operational modes and provides
// a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  comm  →  session/capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of tcpcomm (serve or
// connect).  Each mode owns its full lifecycle from connection
// establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
