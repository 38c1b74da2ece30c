package buildconfig

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// UserAgent identifies the engine to external model providers.
func UserAgent() string {
	return "sentinel/" + version
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	return map[string]string{
		"service": "sentinel",
		"version": version,
		"commit":  commit,
	}
}
