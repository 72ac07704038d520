package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskctl/deskctl/internal/config"
)

func fixtureSections(critical, optional bool) []section {
	found := func(ok bool, path string) string {
		if ok {
			return path
		}
		return ""
	}
	return []section{
		{Description: criticalSection, Checks: []check{
			{Description: "X VNC server", Paths: []string{"/usr/bin/Xvnc"}, Found: found(critical, "/usr/bin/Xvnc")},
		}},
		{Description: "Networking", Checks: []check{
			{Description: "Websocket provider", Paths: []string{"/usr/bin/websockify", "/opt/bin/websockify"}, Found: found(optional, "/opt/bin/websockify")},
		}},
	}
}

func TestDoctorStatus(t *testing.T) {
	tests := []struct {
		name       string
		critical   bool
		optional   bool
		wantStatus string
		wantFailed []string
	}{
		{"all present", true, true, "good", []string{}},
		{"optional missing", true, false, "pass", []string{"Networking"}},
		{"critical missing", false, true, "fail", []string{criticalSection}},
		{"nothing present", false, false, "fail", []string{criticalSection, "Networking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, failed := doctorStatus(fixtureSections(tt.critical, tt.optional))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}

func TestDoctorReportExecutable(t *testing.T) {
	r := doctorReport(fixtureSections(false, false))
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got struct {
		Sections []struct {
			Description string `json:"description"`
			Services    []struct {
				Executable any  `json:"executable"`
				Presence   bool `json:"presence"`
			} `json:"services"`
		} `json:"sections"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	require.Len(t, got.Sections, 2)
	assert.Equal(t, "/usr/bin/Xvnc", got.Sections[0].Services[0].Executable)
	assert.Equal(t, []any{"/usr/bin/websockify", "/opt/bin/websockify"}, got.Sections[1].Services[0].Executable)
	assert.False(t, got.Sections[1].Services[0].Presence)
	assert.Equal(t, "fail", got.Status)

	r = doctorReport(fixtureSections(true, true))
	assert.Equal(t, "/opt/bin/websockify", r.Sections[1].Services[0].Executable)
}

func TestPrintDoctor(t *testing.T) {
	tests := []struct {
		name     string
		critical bool
		optional bool
		want     []string
		dontWant []string
	}{
		{
			name:     "healthy",
			critical: true,
			optional: true,
			want:     []string{"   > ✅ X VNC server (/usr/bin/Xvnc)", "OK - all dependencies are satisfied!"},
			dontWant: []string{"CRITICAL", "OPTIONAL"},
		},
		{
			name:     "optional missing",
			critical: true,
			optional: false,
			want:     []string{"   > ❌ Websocket provider (/usr/bin/websockify:/opt/bin/websockify)", "OPTIONAL - Networking dependencies are not satisfied."},
			dontWant: []string{"CRITICAL"},
		},
		{
			name:     "critical missing",
			critical: false,
			optional: true,
			want:     []string{"CRITICAL - required dependencies are not available.", "will not function"},
			dontWant: []string{"OK - all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printDoctor(&buf, fixtureSections(tt.critical, tt.optional))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.dontWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestDiagnose(t *testing.T) {
	bin := t.TempDir()
	xvnc := filepath.Join(bin, "vncserver")
	require.NoError(t, os.WriteFile(xvnc, []byte("#!/bin/sh\n"), 0755))

	cfg := &config.Config{
		VNCServerProgram: xvnc,
		VNCPasswdProgram: filepath.Join(bin, "vncpasswd"),
		WebsockifyPaths:  []string{filepath.Join(bin, "websockify")},
	}
	got := diagnose(cfg)

	require.Len(t, got, 4)
	assert.Equal(t, criticalSection, got[0].Description)
	assert.True(t, got[0].Checks[0].Present())
	assert.False(t, got[0].Checks[3].Present())
	assert.False(t, got[0].OK())
	assert.Equal(t, cfg.WebsockifyPaths, got[2].Checks[0].Paths)
}

func TestDoctorCommandNonTTY(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "doctor")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 9)
	first := strings.Split(lines[0], "\t")
	assert.Equal(t, []string{criticalSection, "VNC session management", filepath.Join(c.root, "libexec", "vncserver"), "false"}, first)
}
