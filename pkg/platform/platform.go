// Package platform maps Go's GOOS/GOARCH pair onto the names Python tooling
// uses: the lower-cased system name reported by the interpreter and the
// machine fragment that appears inside wheel platform tags.
package platform

import (
	"fmt"
	"strings"
)

const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSDarwin  = "darwin"
)

// Host describes the machine pipfetch runs on, as Python tooling names it.
type Host struct {
	System  string `json:"system"`  // e.g. "linux", "darwin", "windows"
	Machine string `json:"machine"` // wheel tag fragment, e.g. "x86_64", "aarch64", "amd64"
}

// Detect builds a Host from an explicit GOOS/GOARCH pair.
func Detect(goos, goarch string) Host {
	return Host{
		System:  System(goos),
		Machine: Machine(goos, goarch),
	}
}

func (h Host) String() string {
	return fmt.Sprintf("%s/%s", h.System, h.Machine)
}

// System returns the lower-cased operating system name.
func System(goos string) string {
	goos = strings.ToLower(strings.TrimSpace(goos))
	if goos == "" {
		return "unknown"
	}
	return goos
}

// Machine returns the architecture fragment found in wheel platform tags
// for goos/goarch: manylinux wheels say x86_64 and aarch64, Windows wheels
// say amd64 and arm64, and 32-bit Windows is win32.
func Machine(goos, goarch string) string {
	goos = System(goos)
	switch strings.ToLower(strings.TrimSpace(goarch)) {
	case "amd64", "x86_64", "x64":
		if goos == OSWindows {
			return "amd64"
		}
		return "x86_64"
	case "arm64", "aarch64":
		if goos == OSLinux {
			return "aarch64"
		}
		return "arm64"
	case "386", "i386", "i686", "x86":
		if goos == OSWindows {
			return "win32"
		}
		return "i686"
	case "arm":
		return "armv7l"
	case "":
		return "unknown"
	default:
		return strings.ToLower(goarch)
	}
}
