package kafka

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// getClientID returns hostname-pid-unix so restarted instances get distinct ids
func getClientID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	hostname = strings.ReplaceAll(hostname, ".", "_")

	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().Unix())
}
