package session

import (
	"fmt"
	"strings"
)

// shellQuote wraps a string in single quotes with proper escaping for shell interpolation.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// GeneratePostInitScript builds the wrapper the VNC helper runs once the
// desktop is up. It hands the user's command line to the type's launcher.
func GeneratePostInitScript(launcher string, command []string) string {
	var sb strings.Builder

	sb.WriteString("#!/bin/bash\n")
	sb.WriteString("# deskctl post-init script\n")
	sb.WriteString("# Runs the session's startup script through the desktop type launcher\n\n")

	fmt.Fprintf(&sb, "exec /bin/bash %s", shellQuote(launcher))
	for _, arg := range command {
		fmt.Fprintf(&sb, " %s", shellQuote(arg))
	}
	sb.WriteString("\n")

	return sb.String()
}
