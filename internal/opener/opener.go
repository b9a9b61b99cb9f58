// Package opener hands deep links to whatever will show them to a human:
// a connected browser tab, a locally driven Chrome, or the OS URL handler.
// Open is fire-and-forget; no implementation reports success or failure back.
package opener

import (
	"log/slog"
	"os/exec"
	"runtime"
)

type Opener interface {
	Open(url string)
}

type Func func(url string)

func (f Func) Open(url string) { f(url) }

// Multi fans a link out to every opener in order.
type Multi []Opener

func (m Multi) Open(url string) {
	for _, o := range m {
		o.Open(url)
	}
}

type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Open(url string) {
	l.logger.Info("open link", "url", url)
}

// System opens links with the desktop's default URL handler.
type System struct {
	command func(url string) *exec.Cmd
}

func NewSystem() *System {
	return &System{command: systemCommand}
}

func (s *System) Open(url string) {
	cmd := s.command(url)
	if err := cmd.Start(); err != nil {
		slog.Warn("system opener failed", "error", err)
		return
	}
	go func() { _ = cmd.Wait() }()
}

func systemCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}
