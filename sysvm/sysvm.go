// Package sysvm implements the CALLSYS reference table of §4.6: a
// tag-indexed set of engine primitives (save-file access, clock/sleep,
// user notifications, file lifecycle, frame introspection) that the core
// dispatcher calls through vm.VM.Syscalls. Concrete host behavior for
// GetSaveFolderName/GetGameName/OpenWeb/MsgBox and friends is supplied by
// a Host implementation; this package only wires the CALLSYS tag to the
// right argument/return convention.
package sysvm

import (
	"time"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/save"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// Tag enumerates the CALLSYS tags of §4.6.
type Tag int32

const (
	Exit Tag = iota
	GlobalSave
	GlobalLoad
	GroupSave
	GroupLoad
	ResumeSave
	ResumeLoad
	Output
	MsgBox
	MsgBoxOkCancel
	Error
	ExistsFile
	ExistsSaveFile
	DeleteSaveFile
	CopySaveFile
	GetTime
	GetDate
	Sleep
	GetSaveFolderName
	GetGameName
	OpenWeb
	Peek
	LockPeek
	UnlockPeek
	RestrainScreensaver
	Reset
	ExistFunc
	GetFuncStackName
)

// Host supplies the engine-level behavior CALLSYS needs beyond the save
// collaborator: wall clock, user-visible notifications, and the handful
// of configuration getters a real front-end would back with its window
// toolkit. A test or headless host can implement every method trivially.
type Host interface {
	Now() time.Time
	Sleep(d time.Duration)
	Notify(kind, text string) // Output/MsgBox/MsgBoxOkCancel/Error, kind names which
	ExistsFile(name string) bool
	SaveFolderName() string
	GameName() string
	OpenWeb(url string)
}

// Exec is a vm.Syscall implementation: dispatch binds it once with the
// save hooks and Host a concrete run needs. v is threaded through so
// syscalls can pop/push the operand stack and access the heap/image.
type Exec struct {
	Host  Host
	Saves save.Hooks
}

// Heaper is the minimal surface Exec needs from vm.VM, kept as an
// interface so this package does not import vm (vm's Syscall hook type
// only names *VM and int32, so vm never needs to import sysvm either —
// the two packages meet structurally through this interface).
type Heaper interface {
	PopOperand() value.Value
	PushOperand(value.Value)
	HeapRef() *heap.Heap
	ImageRef() *ain.Image
	GlobalVars() save.Vars
	FrameNames() []string
	AllocString(s string) int32
	HaltVM()
	ResetVM()
	CaptureResume(key string) save.ResumeSnapshot
	RestoreResume(snap *save.ResumeSnapshot)
}

// Dispatch executes one CALLSYS tag against v.
func (e *Exec) Dispatch(v Heaper, tag int32) error {
	switch Tag(tag) {
	case Exit:
		v.HaltVM()
	case GlobalSave:
		return e.globalSave(v, "")
	case GroupSave:
		group := v.HeapRef().String(v.PopOperand().Slot())
		return e.globalSave(v, group)
	case GlobalLoad:
		return e.globalLoad(v, "")
	case GroupLoad:
		group := v.HeapRef().String(v.PopOperand().Slot())
		return e.globalLoad(v, group)
	case ResumeSave:
		key := v.HeapRef().String(v.PopOperand().Slot())
		name := v.HeapRef().String(v.PopOperand().Slot())
		snap := v.CaptureResume(key)
		ok := e.Saves.ResumeSave(name, key, snap) == nil
		v.PushOperand(value.BoolFrom(ok))
	case ResumeLoad:
		key := v.HeapRef().String(v.PopOperand().Slot())
		name := v.HeapRef().String(v.PopOperand().Slot())
		snap, err := e.Saves.ResumeLoad(name, key)
		if err != nil {
			v.PushOperand(value.BoolFrom(false))
			return err
		}
		v.RestoreResume(snap)
		v.PushOperand(value.BoolFrom(true))
	case Output:
		text := v.HeapRef().String(v.PopOperand().Slot())
		e.Host.Notify("output", text)
	case MsgBox:
		text := v.HeapRef().String(v.PopOperand().Slot())
		e.Host.Notify("msgbox", text)
	case MsgBoxOkCancel:
		text := v.HeapRef().String(v.PopOperand().Slot())
		e.Host.Notify("msgbox_okcancel", text)
		v.PushOperand(value.BoolFrom(true))
	case Error:
		text := v.HeapRef().String(v.PopOperand().Slot())
		e.Host.Notify("error", text)
	case ExistsFile:
		name := v.HeapRef().String(v.PopOperand().Slot())
		v.PushOperand(value.BoolFrom(e.Host.ExistsFile(name)))
	case ExistsSaveFile:
		name := v.HeapRef().String(v.PopOperand().Slot())
		v.PushOperand(value.BoolFrom(e.Saves.ExistsSaveFile(name)))
	case DeleteSaveFile:
		name := v.HeapRef().String(v.PopOperand().Slot())
		v.PushOperand(value.BoolFrom(e.Saves.DeleteSaveFile(name) == nil))
	case CopySaveFile:
		dst := v.HeapRef().String(v.PopOperand().Slot())
		src := v.HeapRef().String(v.PopOperand().Slot())
		v.PushOperand(value.BoolFrom(e.Saves.CopySaveFile(src, dst) == nil))
	case GetTime:
		v.PushOperand(value.IntFrom(int32(e.Host.Now().Unix())))
	case GetDate:
		now := e.Host.Now()
		v.PushOperand(value.IntFrom(int32(now.Year()*10000 + int(now.Month())*100 + now.Day())))
	case Sleep:
		ms := v.PopOperand().Int()
		e.Host.Sleep(time.Duration(ms) * time.Millisecond)
	case GetSaveFolderName:
		v.PushOperand(value.SlotFrom(v.AllocString(e.Host.SaveFolderName())))
	case GetGameName:
		v.PushOperand(value.SlotFrom(v.AllocString(e.Host.GameName())))
	case OpenWeb:
		url := v.HeapRef().String(v.PopOperand().Slot())
		e.Host.OpenWeb(url)
	case Peek, LockPeek, UnlockPeek, RestrainScreensaver:
		// No-ops in this core (§4.6).
	case Reset:
		v.ResetVM()
	case ExistFunc:
		name := v.HeapRef().String(v.PopOperand().Slot())
		_, ok := v.ImageRef().FindFunction(name)
		v.PushOperand(value.BoolFrom(ok))
	case GetFuncStackName:
		i := v.PopOperand().Int()
		names := v.FrameNames()
		if i < 0 || int(i) >= len(names) {
			v.PushOperand(value.SlotFrom(v.AllocString("")))
		} else {
			v.PushOperand(value.SlotFrom(v.AllocString(names[i])))
		}
	default:
		return vmerr.NewWarn("unknown syscall tag %d", tag)
	}
	return nil
}

func (e *Exec) globalSave(v Heaper, group string) error {
	name := v.HeapRef().String(v.PopOperand().Slot())
	key := v.HeapRef().String(v.PopOperand().Slot())
	img := v.ImageRef()
	var groupIndex int32 = -1
	if group != "" {
		for i, g := range img.Globals {
			if g.Name == group {
				groupIndex = int32(i)
				break
			}
		}
	}
	err := e.Saves.GlobalSave(name, key, group, groupIndex, v.HeapRef(), v.GlobalVars(), img.Globals)
	v.PushOperand(value.BoolFrom(err == nil))
	return err
}

func (e *Exec) globalLoad(v Heaper, group string) error {
	name := v.HeapRef().String(v.PopOperand().Slot())
	key := v.HeapRef().String(v.PopOperand().Slot())
	img := v.ImageRef()
	err := e.Saves.GlobalLoad(name, key, v.HeapRef(), v.GlobalVars(), img.Globals)
	v.PushOperand(value.BoolFrom(err == nil))
	return err
}
