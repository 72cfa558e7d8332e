package health

import (
	"os/exec"
	"strings"
)

// Command checks that argv[0] resolves on PATH. A missing optional command is degraded
// (the sandbox skips it); a missing required one is an error.
func Command(name string, argv []string, required bool) HealthChecker {
	return CheckerFunc(func() ComponentHealth {
		if len(argv) == 0 {
			if required {
				return ComponentHealth{Name: name, Status: StatusError, Message: "not configured"}
			}
			return ComponentHealth{Name: name, Status: StatusDegraded, Message: "disabled"}
		}
		path, err := exec.LookPath(argv[0])
		if err != nil {
			status := StatusDegraded
			if required {
				status = StatusError
			}
			return ComponentHealth{Name: name, Status: status, Message: argv[0] + " not found in PATH"}
		}
		return ComponentHealth{Name: name, Status: StatusOK, Message: strings.Join(append([]string{path}, argv[1:]...), " ")}
	})
}

// Secret checks that a credential is set without revealing it.
func Secret(name, value string) HealthChecker {
	return CheckerFunc(func() ComponentHealth {
		if value == "" {
			return ComponentHealth{Name: name, Status: StatusError, Message: "not set"}
		}
		return ComponentHealth{Name: name, Status: StatusOK, Message: "set"}
	})
}
