package common

// Version information, overridable at build time via -ldflags.
var (
	version = "0.1.0"
	build   = "dev"
)

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

// GetBuild returns the build identifier.
func GetBuild() string {
	return build
}
