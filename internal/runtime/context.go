// Package runtime contains runtime metadata and application wiring separate
// from user configuration.
package runtime

// Context contains runtime metadata that is not user-configurable. It is
// injected at application startup and is not part of the configuration
// system.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}
