package packages

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Manager is a host package manager, named by its executable.
type Manager string

const (
	Apt  Manager = "apt-get"
	Yum  Manager = "yum"
	Brew Manager = "brew"
)

// ManagerByName resolves a configured manager. The empty string and "auto"
// detect the host's manager.
func ManagerByName(name string) (Manager, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return DetectManager(), nil
	case "apt", "apt-get":
		return Apt, nil
	case "yum":
		return Yum, nil
	case "brew":
		return Brew, nil
	default:
		return "", fmt.Errorf("unknown package manager %q: must be 'auto', 'apt-get', 'yum' or 'brew'", name)
	}
}

// DetectManager picks brew on macOS, yum on Red Hat family hosts and
// apt-get everywhere else.
func DetectManager() Manager {
	release, _ := os.ReadFile("/etc/os-release")
	return detect(runtime.GOOS, string(release))
}

func detect(goos, osRelease string) Manager {
	if goos == "darwin" {
		return Brew
	}
	release := strings.ToLower(osRelease)
	for _, family := range []string{"centos", "rhel", "redhat", "fedora"} {
		if strings.Contains(release, family) {
			return Yum
		}
	}
	return Apt
}

// InstallCommand returns the shell line installing names non-interactively.
func InstallCommand(m Manager, names []string) string {
	if m == Brew {
		return "brew install " + strings.Join(names, " ")
	}
	return fmt.Sprintf("%s install -y %s", m, strings.Join(names, " "))
}
