package session

import (
	"os"
	"os/user"

	"telgen/internal/config"
)

// CurrentIdentity captures the running process's pid and user name.
// An empty processName selects config.DefaultProcessName.
func CurrentIdentity(processName string) Identity {
	if processName == "" {
		processName = config.DefaultProcessName
	}
	return Identity{
		PID:         os.Getpid(),
		Username:    currentUsername(),
		ProcessName: processName,
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}
