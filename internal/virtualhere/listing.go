package virtualhere

import (
	"regexp"
	"strings"

	"github.com/nerrad567/vhtoggle/internal/device"
)

// Defaults matching the VirtualHere client's IPC output.
const (
	DefaultBanner      = "VirtualHere Client IPC"
	DefaultTrailer     = "VirtualHere Client is running as a service"
	DefaultInUseMarker = "In-use by you"
)

// addressPattern captures the first non-empty parenthesised token.
var addressPattern = regexp.MustCompile(`\(([^)]+)\)`)

// IsCompleteListing reports whether trimmed LIST output is a whole response.
func IsCompleteListing(output, banner, trailer string) bool {
	return strings.HasPrefix(output, banner) && strings.HasSuffix(output, trailer)
}

// ParseListing finds the device in a complete listing.
//
// Parameters:
//   - listing: LIST output, already validated by IsCompleteListing
//   - match: Substring identifying the device line (first match wins)
//   - inUseMarker: Substring meaning the device is attached to this host
//
// Returns:
//   - device.Device: Unavailable when no line matches or the line has no
//     parenthesised address
func ParseListing(listing, match, inUseMarker string) device.Device {
	line, ok := findLine(listing, match)
	if !ok {
		return device.Unavailable()
	}

	m := addressPattern.FindStringSubmatch(line)
	if m == nil {
		return device.Unavailable()
	}
	address := m[1]

	if inUseMarker != "" && strings.Contains(line, inUseMarker) {
		return device.Connected(address)
	}
	return device.Disconnected(address)
}

// findLine returns the first newline-delimited line containing match, trimmed.
func findLine(listing, match string) (string, bool) {
	for line := range strings.SplitSeq(listing, "\n") {
		if strings.Contains(line, match) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}
