package save

import (
	"os"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
)

// Hooks is the interface the core calls through for every save-related
// CALLSYS tag of §4.6: GlobalSave/GlobalLoad/GroupSave/GroupLoad map to
// the globals snapshot, ResumeSave/ResumeLoad to the resume snapshot, and
// the file-lifecycle tags operate on whatever directory the host
// configures as the save folder.
type Hooks interface {
	GlobalSave(name, key, group string, groupIndex int32, h *heap.Heap, globals Vars, globalsList []ain.Global) error
	GlobalLoad(name, key string, h *heap.Heap, globals Vars, globalsList []ain.Global) error

	ResumeSave(name, key string, snap ResumeSnapshot) error
	ResumeLoad(name, key string) (*ResumeSnapshot, error)

	ExistsSaveFile(name string) bool
	DeleteSaveFile(name string) error
	CopySaveFile(src, dst string) error
}

// DefaultHooks is the module's default Hooks implementation: a
// GlobalStore (pogreb) for globals snapshots and a ResumeStore (bbolt)
// for resume snapshots, both rooted at the host's configured save
// directory (§6's "Host configuration surface").
type DefaultHooks struct {
	SaveDir string
	globals *GlobalStore
	resume  *ResumeStore
}

// NewDefaultHooks opens both backing stores under saveDir.
func NewDefaultHooks(saveDir string) (*DefaultHooks, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, err
	}
	g, err := OpenGlobalStore(saveDir + "/globals.pogreb")
	if err != nil {
		return nil, err
	}
	r, err := OpenResumeStore(saveDir + "/resume.bbolt")
	if err != nil {
		g.Close()
		return nil, err
	}
	return &DefaultHooks{SaveDir: saveDir, globals: g, resume: r}, nil
}

// Close releases both backing stores.
func (d *DefaultHooks) Close() error {
	err1 := d.globals.Close()
	err2 := d.resume.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (d *DefaultHooks) GlobalSave(name, key, group string, groupIndex int32, h *heap.Heap, globals Vars, globalsList []ain.Global) error {
	return d.globals.Save(name, key, group, groupIndex, h, globals, globalsList)
}

func (d *DefaultHooks) GlobalLoad(name, key string, h *heap.Heap, globals Vars, globalsList []ain.Global) error {
	snap, err := d.globals.Load(name, key)
	if err != nil {
		return err
	}
	Apply(h, snap, globals, globalsList)
	return nil
}

func (d *DefaultHooks) ResumeSave(name, key string, snap ResumeSnapshot) error {
	snap.Key = key
	return d.resume.Save(name, snap)
}

func (d *DefaultHooks) ResumeLoad(name, key string) (*ResumeSnapshot, error) {
	return d.resume.Load(name, key)
}

func (d *DefaultHooks) ExistsSaveFile(name string) bool {
	_, err := os.Stat(d.SaveDir + "/" + name)
	return err == nil
}

func (d *DefaultHooks) DeleteSaveFile(name string) error {
	return os.Remove(d.SaveDir + "/" + name)
}

func (d *DefaultHooks) CopySaveFile(src, dst string) error {
	data, err := os.ReadFile(d.SaveDir + "/" + src)
	if err != nil {
		return err
	}
	return os.WriteFile(d.SaveDir+"/"+dst, data, 0o644)
}
