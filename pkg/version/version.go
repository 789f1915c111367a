package version

// Version represents the current version of the aurorax client
const Version = "0.9.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "aurorax version " + Version
}

// UserAgent is the user-agent header value sent to the API.
func UserAgent() string {
	return "go-aurorax/" + Version
}
