package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/deskctl/deskctl/internal/network"
	"github.com/deskctl/deskctl/internal/session"
	"github.com/deskctl/deskctl/internal/ui"
)

// printDetails writes the connection details of s. On a terminal they are
// framed and styled; otherwise they are NAME<TAB>VALUE lines.
func printDetails(w io.Writer, s *session.Session, tty bool) {
	display, _ := s.Display()
	fields := []struct{ label, value string }{
		{"Identity", s.ID},
		{"Name", s.Name()},
		{"Type", s.TypeName()},
		{"Host IP", s.IP()},
		{"Hostname", s.HostName()},
		{"Port", strconv.Itoa(s.VNCPort())},
		{"Display", ":" + strconv.Itoa(display)},
		{"Password", s.Password()},
	}
	if port := s.WebsocketPort(); port != 0 {
		fields = append(fields, struct{ label, value string }{"Websocket", strconv.Itoa(port)})
	}

	if !tty {
		for _, f := range fields {
			if f.value == "" {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", f.label, f.value)
		}
		return
	}

	_, _ = fmt.Fprintf(w, "\n== %s ==\n\n", ui.HeadingStyle.Render("Session details"))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		label := fmt.Sprintf("%10s", f.label+":")
		_, _ = fmt.Fprintf(w, "%s %s\n", ui.LabelStyle.Render(label), ui.ValueStyle.Render(f.value))
	}
	_, _ = fmt.Fprintln(w)
}

func vncURLs(ip string, s *session.Session) string {
	display, _ := s.Display()
	return strings.Join([]string{
		ui.AddressStyle.Render(fmt.Sprintf("vnc://%s:%s@%s:%d", os.Getenv("USER"), s.Password(), ip, s.VNCPort())),
		ui.AddressStyle.Render(fmt.Sprintf("%s:%d", ip, s.VNCPort())),
		ui.AddressStyle.Render(fmt.Sprintf("%s:%d", ip, display)),
	}, "\n  ")
}

func passwordPrompt(s *session.Session) string {
	return "If prompted, you should supply the following password: " + ui.ValueStyle.Render(s.Password()) + "\n"
}

func insecureNote(s *session.Session) string {
	return fmt.Sprintf(`IMPORTANT NOTE
==============
  Connecting to desktop sessions directly is NOT SECURE. Use 'ssh'
  port forwarding to %s.

  Refer to %s for more details.
`, ui.EmphasisStyle.Render("protect the connection"), ui.Command(rootCmd.Name()+" show "+s.ShortID()))
}

// accessSummary explains briefly how to reach a freshly started session.
func accessSummary(ctx context.Context, a *app, s *session.Session) string {
	switch a.policy.Classify(ctx, s.IP(), s.VNCPort()) {
	case network.Public:
		return strings.Join([]string{
			"This desktop session is directly accessible from the public internet.\n",
			"Depending on your client and network configuration you may be able to\nconnect to the session directly using:\n\n  " + vncURLs(s.IP(), s) + "\n",
			insecureNote(s),
			passwordPrompt(s),
		}, "\n")
	case network.OnAccessHost:
		return strings.Join([]string{
			"This desktop session is not accessible from the public internet, but\nmay be reachable from your local network or over a VPN.\n",
			"Depending on your client and network configuration you may be able to\nconnect to the session directly using:\n\n  " + vncURLs(accessAddress(a, s), s) + "\n",
			insecureNote(s),
			passwordPrompt(s),
		}, "\n")
	default:
		return strings.Join([]string{
			fmt.Sprintf("This desktop session runs on a host that is only reachable from inside\nthe cluster. %s\n\nRefer to %s for more details.\n",
				ui.EmphasisStyle.Render("You will need to forward a port with 'ssh' to reach it."),
				ui.Command(rootCmd.Name()+" show "+s.ShortID())),
			passwordPrompt(s),
		}, "\n")
	}
}

// accessDetails explains in full how to tunnel to a session.
func accessDetails(ctx context.Context, a *app, s *session.Session) string {
	user := os.Getenv("USER")
	general := fmt.Sprintf(`Once the ssh connection is up, depending on your client, you can
connect to the session using one of:

  %s
  %s
  %s

If ssh reports that it cannot listen on port 5901, try again with a
different local port, e.g. 5902 or 5903.

%s`,
		ui.ValueStyle.Render(fmt.Sprintf("vnc://%s:%s@localhost:5901", user, s.Password())),
		ui.ValueStyle.Render("localhost:5901"),
		ui.ValueStyle.Render("localhost:1"),
		passwordPrompt(s))

	accessHost := a.cfg.AccessSummaryHost()
	if accessHost == "" {
		accessHost = "<access host>"
	}
	switch a.policy.Classify(ctx, s.IP(), s.VNCPort()) {
	case network.Public:
		tunnel := fmt.Sprintf("ssh -L 5901:localhost:%d %s@%s", s.VNCPort(), user, s.IP())
		return fmt.Sprintf(`This desktop session is accessible from the public internet. Sessions
reached over the public internet are not secure.

%s:

  %s

%s`, ui.EmphasisStyle.Render("Access the session through 'ssh' port forwarding"), ui.ValueStyle.Render(tunnel), general)
	case network.OnAccessHost:
		tunnel := fmt.Sprintf("ssh -L 5901:%s:%d %s@%s", s.IP(), s.VNCPort(), user, accessHost)
		return fmt.Sprintf(`This desktop session is not accessible from the public internet, but
may be reachable from your local network or over a VPN.

Depending on your client and network configuration you may be able to
connect to the session directly using:

  %s

%s:

  %s

%s`, vncURLs(accessAddress(a, s), s), ui.EmphasisStyle.Render("Prefer 'ssh' port forwarding"), ui.ValueStyle.Render(tunnel), general)
	default:
		tunnel := fmt.Sprintf("ssh -L 5901:%s:%d %s@%s", s.IP(), s.VNCPort(), user, accessHost)
		return fmt.Sprintf(`This desktop session runs on a host that is only reachable from inside
the cluster. %s:

  %s

%s`, ui.EmphasisStyle.Render("Forward a port with 'ssh' to reach it"), ui.ValueStyle.Render(tunnel), general)
	}
}

// accessAddress is the address clients use for a session on an access
// host: the configured access_ip, falling back to the session's own.
func accessAddress(a *app, s *session.Session) string {
	if a.cfg.AccessIP != "" {
		return a.cfg.AccessIP
	}
	return s.IP()
}
