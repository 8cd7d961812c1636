package system

// Build-time metadata, injected via -ldflags.
var (
	Version = "0.0.0-dev"
	Commit  = ""
)

// VersionString returns the version, with the commit appended when known.
func VersionString() string {
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}
