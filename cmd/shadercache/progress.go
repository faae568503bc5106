package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progress draws a bar on terminals and stays silent everywhere else.
type progress struct {
	writer      io.Writer
	description string
	bar         *progressbar.ProgressBar
}

func newProgress(writer io.Writer, description string) *progress {
	return &progress{writer: writer, description: description}
}

// Update moves the bar to current of total, creating it on first use.
func (p *progress) Update(current, total int) {
	if !isTerminal(p.writer) || total <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(current)
}

func (p *progress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
