package session

import (
	"crypto/rand"
	"encoding/base64"
	"os/exec"
	"strings"

	"github.com/deskctl/deskctl/internal/proc"
)

// PasswordLength is the length of generated VNC passwords. VNC truncates
// passwords to eight characters.
const PasswordLength = 8

// apgProgram generates pronounceable passwords when installed.
var apgProgram = "/usr/bin/apg"

// PasswordGenerator returns the path of the optional password generator.
func PasswordGenerator() string { return apgProgram }

// GeneratePassword returns an 8-character password, using apg when it is
// available and crypto/rand otherwise.
func GeneratePassword() string {
	if proc.IsExecutable(apgProgram) {
		out, err := exec.Command(apgProgram, "-n1", "-M", "Ncl", "-m", "8", "-x", "8").Output()
		if pw := strings.TrimSpace(string(out)); err == nil && len(pw) == PasswordLength {
			return pw
		}
	}

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	pw := base64.RawURLEncoding.EncodeToString(buf)
	return strings.NewReplacer("-", "x", "_", "y").Replace(pw)
}
