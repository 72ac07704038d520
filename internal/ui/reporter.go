package ui

import (
	"fmt"
	"io"
)

// StageReporter shows the progress of a verify or prepare script, one
// spinner per stage. It implements verify.Reporter.
type StageReporter struct {
	W       io.Writer
	Animate bool

	spin *Spinner
}

func (r *StageReporter) StageStart(name string) {
	if r.spin != nil {
		r.spin.Stop(true)
	}
	r.spin = StartSpinner(r.W, name, r.Animate)
}

func (r *StageReporter) StageStop(ok bool) {
	if r.spin == nil {
		return
	}
	r.spin.Stop(ok)
	r.spin = nil
}

func (r *StageReporter) Error(msg string) {
	r.println("== " + CritStyle.Render("ERROR") + ": " + msg)
}

func (r *StageReporter) Output(line string) {
	r.println(" > " + DimStyle.Render(line))
}

// Close fails any stage still running when the script ends.
func (r *StageReporter) Close() {
	r.StageStop(false)
}

func (r *StageReporter) println(line string) {
	if r.spin != nil {
		r.spin.Println(line)
		return
	}
	_, _ = fmt.Fprintln(r.W, line)
}
