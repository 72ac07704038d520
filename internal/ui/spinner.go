package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

const indent = "   > "

// Spinner animates a status line while a blocking step runs and replaces
// it with a tick or cross once the step finishes. Without animation only
// the final line is written.
type Spinner struct {
	w       io.Writer
	label   string
	animate bool
	style   spinner.Spinner

	mu   sync.Mutex
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// StartSpinner begins a status line for label. Animation is only useful
// on a terminal; pass false when w is a pipe or file.
func StartSpinner(w io.Writer, label string, animate bool) *Spinner {
	s := &Spinner{
		w:       w,
		label:   label,
		animate: animate,
		style:   spinner.MiniDot,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if animate {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.style.FPS)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		s.mu.Lock()
		_, _ = fmt.Fprintf(s.w, "\r%s%s %s", indent, s.style.Frames[frame%len(s.style.Frames)], LabelStyle.Render(s.label))
		s.mu.Unlock()

		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Println writes a line above the status line.
func (s *Spinner) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.animate {
		_, _ = io.WriteString(s.w, "\r\033[K")
	}
	_, _ = fmt.Fprintln(s.w, line)
}

// Stop ends the animation and writes the final status line. Calling Stop
// more than once has no further effect.
func (s *Spinner) Stop(ok bool) {
	first := false
	s.once.Do(func() {
		close(s.stop)
		first = true
	})
	if !first {
		return
	}
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.animate {
		_, _ = io.WriteString(s.w, "\r\033[K")
	}
	_, _ = fmt.Fprintf(s.w, "%s%s %s\n", indent, Mark(ok), LabelStyle.Render(s.label))
}

// Step runs fn under a spinner and reports its outcome. fn's error is
// returned unchanged.
func Step(w io.Writer, label string, animate bool, fn func() error) error {
	s := StartSpinner(w, label, animate)
	err := fn()
	s.Stop(err == nil)
	return err
}
