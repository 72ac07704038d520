package proc

import "strings"

// inheritedBlacklist lists variables that must not leak from the invoking
// shell into a desktop session: they point at the caller's own display,
// agents or desktop bus.
var inheritedBlacklist = map[string]bool{
	"DISPLAY":                  true,
	"XAUTHORITY":               true,
	"SESSION_MANAGER":          true,
	"DBUS_SESSION_BUS_ADDRESS": true,
	"XDG_SESSION_ID":           true,
	"XDG_RUNTIME_DIR":          true,
	"XDG_SESSION_TYPE":         true,
	"XDG_CURRENT_DESKTOP":      true,
	"WINDOWID":                 true,
	"SSH_AUTH_SOCK":            true,
	"SSH_AGENT_PID":            true,
	"GPG_AGENT_INFO":           true,
	"DESKTOP_SESSION":          true,
	"VNCDESKTOP":               true,
	"GNOME_KEYRING_CONTROL":    true,
	"GNOME_KEYRING_PID":        true,
	"KRB5CCNAME":               true,
	"XDG_SESSION_COOKIE":       true,
	"LS_COLORS":                true,
	"SHLVL":                    true,
}

var minimalAllowlist = []string{"USER", "HOME", "LANG"}

// CleanEnv returns environ without the blacklisted variables.
func CleanEnv(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		if inheritedBlacklist[envKey(kv)] {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// MinimalEnv keeps only USER, HOME and LANG from environ and sets PATH.
func MinimalEnv(environ []string, path string) []string {
	out := make([]string, 0, len(minimalAllowlist)+1)
	for _, key := range minimalAllowlist {
		if v, ok := Lookup(environ, key); ok {
			out = append(out, key+"="+v)
		}
	}
	return append(out, "PATH="+path)
}

// Setenv returns env with key set to value, replacing any existing entry.
func Setenv(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if envKey(kv) != key {
			out = append(out, kv)
		}
	}
	return append(out, key+"="+value)
}

// Lookup finds key in env.
func Lookup(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if envKey(env[i]) == key {
			return env[i][len(key)+1:], true
		}
	}
	return "", false
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}
