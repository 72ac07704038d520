package verify

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// CommsFD is the file descriptor scripts write protocol lines to.
const CommsFD = 3

var bashVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// functions exported into the script environment. desktop_comms prefixes
// its arguments (or each line of stdin when called without arguments) and
// writes them to the comms descriptor.
var functions = []struct{ name, body string }{
	{"desktop_comms", `local msg=$1
  shift
  if [ "$1" ]; then
    echo "${msg}:$*" 1>&{fd}
  else
    sed "s/^/${msg}:/" 1>&{fd}
  fi`},
	{"desktop_stage", `desktop_comms STAGE "$@"`},
	{"desktop_err", `desktop_comms ERR "$@"`},
	{"desktop_miss", `desktop_comms MISS "$@"`},
}

// FunctionDelimiter returns the suffix bash expects on exported function
// variable names: "%%" from 4.3.27 onwards, "()" before.
func FunctionDelimiter(ctx context.Context, bash string) string {
	out, err := exec.CommandContext(ctx, bash, "-c", "echo $BASH_VERSION").Output()
	if err != nil {
		return "%%"
	}
	return delimiterFor(strings.TrimSpace(string(out)))
}

func delimiterFor(version string) string {
	m := bashVersionPattern.FindStringSubmatch(version)
	if m == nil {
		return "%%"
	}
	parts := make([]int, 3)
	for i := range parts {
		parts[i], _ = strconv.Atoi(m[i+1])
	}
	if compareVersion(parts, []int{4, 3, 27}) >= 0 {
		return "%%"
	}
	return "()"
}

func compareVersion(a, b []int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// FunctionEnv returns the environment entries that export the protocol
// helper functions into a bash child.
func FunctionEnv(delim string) []string {
	env := make([]string, 0, len(functions))
	for _, fn := range functions {
		body := strings.ReplaceAll(fn.body, "{fd}", strconv.Itoa(CommsFD))
		env = append(env, "BASH_FUNC_"+fn.name+delim+"=() {  "+body+"\n}")
	}
	return env
}
