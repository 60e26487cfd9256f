package protocol

// Protocol versions this server supports, newest first.
var SupportedVersions = []string{"2025-03-26", "2024-11-05"}

// LatestVersion returns the newest supported protocol version.
func LatestVersion() string {
	return SupportedVersions[0]
}

// NegotiateVersion returns the protocol version the server will speak for a
// requested version. A supported version is echoed back; anything else
// negotiates down to the newest supported version, per the protocol
// family's convention.
func NegotiateVersion(requested string) string {
	for _, v := range SupportedVersions {
		if v == requested {
			return v
		}
	}
	return LatestVersion()
}

// Method names.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPing          = "ping"
)
