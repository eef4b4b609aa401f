// Package docker implements the container runtime environment provider
// for the tilerun CLI.
//
// When the manifest selects environment.provider: docker, the pipeline
// steps run inside a container of the configured image instead of a
// local conda environment. This package handles:
//
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Daemon reachability checks (Ping) used during preflight
//   - Image existence checks, so a missing image fails before any step
//   - Building the `docker run` invocation for a single step
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
// Step execution itself is a child `docker run` process, so the step's
// stdout/stderr stream to the console exactly as a local step's would.
package docker
