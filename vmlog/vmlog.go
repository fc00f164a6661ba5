// Package vmlog is the interpreter's structured logger. It distinguishes
// the three log-worthy error kinds of §7: a FatalVm gets an error-level
// entry with the opcode, IP and stack trace just before the process exits
// through the shutdown path; a RuntimeWarn gets a warn-level entry and
// execution continues; a UserError (Output/MsgBox/Error syscalls) gets an
// info-level entry and never touches VM state.
package vmlog

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ainrun/ainvm/vmerr"
)

// Logger wraps a logrus.Logger with the VM's three log call sites.
type Logger struct {
	l *logrus.Logger
}

// New builds a Logger writing structured (text) entries to stderr.
func New() *Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

// Fatal logs a FatalVm before the shutdown path runs. It never calls
// os.Exit itself — the caller owns the shutdown sequence.
func (lg *Logger) Fatal(f *vmerr.Fatal) {
	fields := logrus.Fields{
		"opcode": f.Opcode,
		"ip":     f.IP,
	}
	for i, fr := range f.Trace {
		fields[traceKey(i)] = fr.FuncName
	}
	lg.l.WithFields(fields).Error(f.Error())
}

// Warn logs a RuntimeWarn and continues.
func (lg *Logger) Warn(w *vmerr.Warn) {
	lg.l.Warn(w.Error())
}

// UserNotice logs a syscall-driven UserError-kind notification (Output,
// MsgBox, MsgBoxOkCancel, Error). It is purely informational.
func (lg *Logger) UserNotice(tag, text string) {
	lg.l.WithField("syscall", tag).Info(text)
}

func traceKey(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "frame_" + string(letters[i])
	}
	return "frame_n"
}
