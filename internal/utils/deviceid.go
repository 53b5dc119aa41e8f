package utils

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// StationID names the machine a station runs on. It prefers a hardware or
// install id and falls back to the hostname, then "unknown".
func StationID() string {
	var id string
	switch runtime.GOOS {
	case "darwin":
		id = macOSUUID()
	case "linux":
		id = linuxID()
	}
	if id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}

func macOSUUID() string {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "IOPlatformUUID") {
			parts := strings.Split(line, "\"")
			if len(parts) >= 4 {
				return parts[3]
			}
		}
	}
	return ""
}

func linuxID() string {
	// product_uuid is root-only on most distributions
	for _, path := range []string{"/sys/class/dmi/id/product_uuid", "/etc/machine-id"} {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	}
	return ""
}
