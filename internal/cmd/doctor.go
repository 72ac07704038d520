package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/config"
	"github.com/deskctl/deskctl/internal/proc"
	"github.com/deskctl/deskctl/internal/session"
	"github.com/deskctl/deskctl/internal/ui"
)

const criticalSection = "Critical"

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Perform diagnostics and display results",
	Long: `Check that the programs deskctl relies on are installed.

Critical dependencies are required to run desktop sessions at all. Optional
dependencies enable screenshots, web access and stronger passwords.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

// check is one program search. Paths are tried in order.
type check struct {
	Description string
	Paths       []string
	Found       string
}

// Present reports whether any of the paths is executable.
func (c check) Present() bool { return c.Found != "" }

// Executable returns the path found, or the paths searched joined by sep.
func (c check) Executable(sep string) string {
	if c.Present() {
		return c.Found
	}
	return strings.Join(c.Paths, sep)
}

type section struct {
	Description string
	Checks      []check
}

func (s section) OK() bool {
	for _, c := range s.Checks {
		if !c.Present() {
			return false
		}
	}
	return true
}

// diagnose runs every check. The first section is critical; the rest are
// optional.
func diagnose(cfg *config.Config) []section {
	sections := []section{
		{Description: criticalSection, Checks: []check{
			{Description: "VNC session management", Paths: []string{cfg.VNCServerProgram}},
			{Description: "X VNC server", Paths: []string{"/usr/bin/Xvnc"}},
			{Description: "X authority file utility", Paths: []string{"/usr/bin/xauth"}},
			{Description: "VNC password management", Paths: []string{cfg.VNCPasswdProgram}},
		}},
		{Description: "Screen capture handling", Checks: []check{
			{Description: "X window capture", Paths: []string{session.CapturePrograms[0]}},
			{Description: "Image converter (stage 1)", Paths: []string{session.CapturePrograms[1]}},
			{Description: "Image converter (stage 2)", Paths: []string{session.CapturePrograms[2]}},
		}},
		{Description: "Networking", Checks: []check{
			{Description: "Websocket provider", Paths: cfg.WebsockifyPaths},
		}},
		{Description: "Improved passwords", Checks: []check{
			{Description: "Password generator", Paths: []string{session.PasswordGenerator()}},
		}},
	}
	for i := range sections {
		for j := range sections[i].Checks {
			c := &sections[i].Checks[j]
			c.Found = proc.FirstExecutable(c.Paths)
		}
	}
	return sections
}

// doctorStatus is "good" when everything is present, "pass" when only
// optional dependencies are missing and "fail" otherwise.
func doctorStatus(sections []section) (status string, failed []string) {
	failed = []string{}
	for _, s := range sections {
		if !s.OK() {
			failed = append(failed, s.Description)
		}
	}
	switch {
	case len(failed) == 0:
		return "good", failed
	case failed[0] == criticalSection:
		return "fail", failed
	default:
		return "pass", failed
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sections := diagnose(cfg)
	out := cmd.OutOrStdout()
	switch {
	case doctorJSON:
		return writeJSON(out, doctorReport(sections))
	case stdoutTTY():
		printDoctor(out, sections)
	default:
		for _, s := range sections {
			for _, c := range s.Checks {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", s.Description, c.Description, c.Executable(":"), strconv.FormatBool(c.Present()))
			}
		}
	}
	return nil
}

type serviceReport struct {
	Description string `json:"description"`
	Executable  any    `json:"executable"`
	Presence    bool   `json:"presence"`
}

type sectionReport struct {
	Description string          `json:"description"`
	Services    []serviceReport `json:"services"`
}

type report struct {
	Sections []sectionReport `json:"sections"`
	Failed   []string        `json:"failed"`
	Status   string          `json:"status"`
}

// doctorReport shapes the results for --json. A missing program reports
// the list of paths searched; a present one the path it was found at.
func doctorReport(sections []section) report {
	var r report
	for _, s := range sections {
		sr := sectionReport{Description: s.Description, Services: []serviceReport{}}
		for _, c := range s.Checks {
			svc := serviceReport{Description: c.Description, Presence: c.Present()}
			if c.Present() {
				svc.Executable = c.Found
			} else if len(c.Paths) == 1 {
				svc.Executable = c.Paths[0]
			} else {
				svc.Executable = c.Paths
			}
			sr.Services = append(sr.Services, svc)
		}
		r.Sections = append(r.Sections, sr)
	}
	r.Status, r.Failed = doctorStatus(sections)
	return r
}

func printDoctor(w io.Writer, sections []section) {
	critical, optional := sections[0], sections[1:]

	_, _ = fmt.Fprint(w, "Verifying critical dependencies:\n\n")
	for _, c := range critical.Checks {
		_, _ = fmt.Fprintf(w, "   > %s %s (%s)\n", ui.Mark(c.Present()), c.Description, c.Executable(":"))
	}

	var summary []string
	_, _ = fmt.Fprint(w, "\nVerifying optional dependencies:\n")
	for _, s := range optional {
		for _, c := range s.Checks {
			_, _ = fmt.Fprintf(w, "   > %s %s (%s)\n", ui.Mark(c.Present()), c.Description, c.Executable(":"))
		}
		if !s.OK() {
			summary = append(summary, fmt.Sprintf(" * %s - %s dependencies are not satisfied.", ui.WarnStyle.Render("OPTIONAL"), s.Description))
		}
		_, _ = fmt.Fprintf(w, "\n   > %s %s\n\n", ui.Mark(s.OK()), s.Description)
	}

	_, _ = fmt.Fprintf(w, "\n== %s ==\n\n", ui.HeadingStyle.Render("Summary"))
	if len(summary) == 0 && critical.OK() {
		_, _ = fmt.Fprintf(w, " * %s - all dependencies are satisfied!\n", ui.OKStyle.Render("OK"))
	} else {
		for _, line := range summary {
			_, _ = fmt.Fprintln(w, line)
		}
		if !critical.OK() {
			_, _ = fmt.Fprintf(w, " * %s - required dependencies are not available.\n\n %s\n",
				ui.CritStyle.Render("CRITICAL"),
				ui.CritStyle.Render("Desktop sessions will not function without further action."))
		}
	}
	_, _ = fmt.Fprintln(w)
}
