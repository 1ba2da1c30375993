package container

import "errors"

// ErrNotFound indicates the requested Docker resource was not found.
var ErrNotFound = errors.New("docker: resource not found")

// ErrImageMissing indicates the requested image tag has no matching image
// in the daemon's image store.
var ErrImageMissing = errors.New("docker: image missing")

// ErrDaemonUnreachable indicates the Docker daemon socket could not be
// reached. Callers map this to errkind.DockerUnavailable.
var ErrDaemonUnreachable = errors.New("docker: daemon unreachable")
