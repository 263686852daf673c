package infra

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mitchellh/ioprogress"

	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/policy"
)

// ConsolePrompter implements domain.InputProvider over a line-oriented reader.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter creates a prompter reading answers from in and writing prompts to out.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt asks for a free-form value.
func (p *ConsolePrompter) Prompt(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return line, nil
}

// Confirm asks a yes/no question. Only y or yes confirms; end of input declines.
func (p *ConsolePrompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch policy.Fold(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *ConsolePrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ConsoleReporter implements domain.ReportSink with aligned tables and a progress bar.
type ConsoleReporter struct {
	out  io.Writer
	draw ioprogress.DrawFunc
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		out:  out,
		draw: ioprogress.DrawTerminalf(out, ioprogress.DrawTextFormatBar(40)),
	}
}

// Profiles prints a profile table.
func (r *ConsoleReporter) Profiles(title string, profiles []domain.ProfileRecord) {
	fmt.Fprintf(r.out, "\n%s (%d):\n", title, len(profiles))
	if len(profiles) == 0 {
		fmt.Fprintln(r.out, "  (none)")
		return
	}

	r.table("NAME\tSID\tPATH\tLAST USE\tLOADED", len(profiles), func(i int) string {
		return domain.FormatProfile(profiles[i])
	})
}

// Results prints removal outcomes.
func (r *ConsoleReporter) Results(title string, results []domain.RemovalResult) {
	fmt.Fprintf(r.out, "\n%s (%d):\n", title, len(results))
	if len(results) == 0 {
		fmt.Fprintln(r.out, "  (none)")
		return
	}

	r.table("NAME\tSID\tACTION\tREASON", len(results), func(i int) string {
		return domain.FormatResult(results[i])
	})
}

func (r *ConsoleReporter) table(header string, n int, row func(i int) string) {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  "+header)
	for i := 0; i < n; i++ {
		fmt.Fprintln(w, "  "+row(i))
	}
	w.Flush()
}

// Warn prints a warning line.
func (r *ConsoleReporter) Warn(message string) {
	fmt.Fprintf(r.out, "warning: %s\n", message)
}

// Progress redraws the deletion progress bar. done < 0 finishes the bar.
func (r *ConsoleReporter) Progress(done, total int) {
	if done < 0 {
		_ = r.draw(-1, -1)
		return
	}
	if total <= 0 {
		return
	}
	_ = r.draw(int64(done), int64(total))
}

// Ensure console types implement their domain interfaces.
var (
	_ domain.InputProvider = (*ConsolePrompter)(nil)
	_ domain.ReportSink    = (*ConsoleReporter)(nil)
)
