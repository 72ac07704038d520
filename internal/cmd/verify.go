package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/desktype"
	"github.com/deskctl/deskctl/internal/ui"
	"github.com/deskctl/deskctl/internal/verify"
)

var (
	verifyForce  bool
	verifyJSON   bool
	prepareForce bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify TYPE",
	Short: "Verify prerequisites are met for a desktop type",
	Long: `Verify that a desktop type can be used on this system. Desktop types
must be verified before they can be used to ensure that their prerequisites
are met.

Specify --force to verify again a desktop type that has already been
verified.

Available desktop types can be shown using the 'avail' command.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare TYPE",
	Short: "Prepare a desktop type for use",
	Long: `Prepare a desktop type for use on this system. This command is only
available to the superuser as installing prerequisites for a desktop type
requires permission to install distribution packages.

Specify --force to perform preparation even if the desktop type has already
been verified.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrepare,
}

func init() {
	verifyCmd.Flags().BoolVarP(&verifyForce, "force", "f", false, "verify even if the type has already been verified")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output the desktop type as JSON")
	rootCmd.AddCommand(verifyCmd)

	prepareCmd.Flags().BoolVarP(&prepareForce, "force", "f", false, "prepare even if the type has already been verified")
	if os.Geteuid() == 0 {
		rootCmd.AddCommand(prepareCmd)
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	t, err := a.types.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		if _, err := t.Verify(cmd.Context(), a.runner(verify.NopReporter{}), verifyForce); err != nil {
			return err
		}
		return writeJSON(out, t)
	}

	if !verifyForce && t.Verified() {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Desktop type %s has already been verified.\n", ui.TypeStyle.Render(t.Name))
		return nil
	}

	_, _ = fmt.Fprintf(out, "Verifying desktop type %s:\n\n", ui.TypeStyle.Render(t.Name))
	rep := &ui.StageReporter{W: out, Animate: stdoutTTY()}
	outcome, err := t.Verify(cmd.Context(), a.runner(rep), verifyForce)
	rep.Close()
	if err != nil {
		return err
	}
	printOutcome(out, t, outcome, os.Geteuid() == 0)
	return nil
}

// printOutcome reports a verify result. Missing prerequisites are listed
// with instructions for preparing the type, which differ for the superuser.
func printOutcome(w io.Writer, t *desktype.Type, outcome verify.Outcome, root bool) {
	name := ui.TypeStyle.Render(t.Name)
	if outcome.Verified() {
		_, _ = fmt.Fprintf(w, "\nDesktop type %s has been verified.\n\n", name)
		return
	}

	_, _ = fmt.Fprintf(w, "\nDesktop type %s has missing prerequisites:\n\n", name)
	for _, m := range outcome.Missing {
		_, _ = fmt.Fprintf(w, " * %s\n", m)
	}
	prepare := ui.Command(rootCmd.Name() + " prepare " + t.Name)
	if root {
		_, _ = fmt.Fprintf(w, `
Before this desktop type can be used, it must be prepared using the
'prepare' command, i.e.:

  %s

`, prepare)
		return
	}
	_, _ = fmt.Fprintf(w, `
Before this desktop type can be used, it must be prepared by your
cluster administrator using the 'prepare' command, i.e.:

  %s

`, prepare)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	if os.Geteuid() != 0 {
		return apperr.New(apperr.TypeOperation, "desktop types may only be prepared by the superuser")
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	t, err := a.types.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !prepareForce && t.Verified() {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Desktop type %s has already been verified.\n", ui.TypeStyle.Render(t.Name))
		return nil
	}

	_, _ = fmt.Fprintf(out, "Preparing desktop type %s:\n\n", ui.TypeStyle.Render(t.Name))
	rep := &ui.StageReporter{W: out, Animate: stdoutTTY()}
	err = t.Prepare(cmd.Context(), a.runner(rep), prepareForce)
	rep.Close()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nDesktop type %s has been prepared.\n\n", ui.TypeStyle.Render(t.Name))
	return nil
}
