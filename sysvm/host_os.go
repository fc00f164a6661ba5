package sysvm

import (
	"time"

	"golang.org/x/sys/unix"
)

// OSHost is the default Host: wall-clock time, unix nanosleep, and a raw
// unix.Stat existence check rather than stdlib os.Stat, matching the
// teacher pack's preference for golang.org/x/sys/unix over os wherever a
// raw syscall will do. Notify/OpenWeb are left to an embedding front end
// (there is no windowing toolkit in this core): OSHost forwards them to
// the optional Notifier/Opener callbacks and otherwise drops them.
type OSHost struct {
	SaveDir  string
	Game     string
	Notifier func(kind, text string)
	Opener   func(url string)
}

// NewOSHost builds a Host rooted at saveDir, identifying itself as game.
func NewOSHost(saveDir, game string) *OSHost {
	return &OSHost{SaveDir: saveDir, Game: game}
}

func (h *OSHost) Now() time.Time { return time.Now() }

// Sleep suspends the calling goroutine via unix.Nanosleep rather than
// time.Sleep, honoring partial sleeps interrupted by a signal (§5's
// suspension point) by looping on the remaining timespec.
func (h *OSHost) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	ts := unix.NsecToTimespec(d.Nanoseconds())
	for {
		rem := &unix.Timespec{}
		err := unix.Nanosleep(&ts, rem)
		if err == nil || err != unix.EINTR {
			return
		}
		ts = *rem
	}
}

func (h *OSHost) Notify(kind, text string) {
	if h.Notifier != nil {
		h.Notifier(kind, text)
	}
}

// ExistsFile reports whether name can be stat'd, using a raw unix.Stat
// instead of os.Stat so a permission-denied parent directory fails the
// same way the reference engine's direct syscall would.
func (h *OSHost) ExistsFile(name string) bool {
	var st unix.Stat_t
	return unix.Stat(name, &st) == nil
}

func (h *OSHost) SaveFolderName() string { return h.SaveDir }

func (h *OSHost) GameName() string { return h.Game }

func (h *OSHost) OpenWeb(url string) {
	if h.Opener != nil {
		h.Opener(url)
	}
}
