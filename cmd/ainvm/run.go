package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/hll"
	"github.com/ainrun/ainvm/save"
	"github.com/ainrun/ainvm/sysvm"
	"github.com/ainrun/ainvm/vm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <image>",
		Short: "load a program image and execute main to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, hooks, err := buildVM(args[0])
			if err != nil {
				return err
			}
			defer hooks.Close()

			if err := v.Run(); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
}

// buildVM loads image and wires up a VM ready for Run/Call: an empty
// native-library registry (a real front end registers its own domain
// libraries against it before running), the sysvm reference syscall
// table bound to an OSHost, and default save hooks rooted at --save-dir.
func buildVM(imagePath string) (*vm.VM, *save.DefaultHooks, error) {
	img, err := ain.Load(imagePath)
	if err != nil {
		return nil, nil, err
	}

	hooks, err := save.NewDefaultHooks(flagSaveDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open save directory: %w", err)
	}

	gameName := flagGameName
	if gameName == "" {
		gameName = strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	}

	v := vm.New(img, hll.NewRegistry())
	exec := &sysvm.Exec{
		Host:  sysvm.NewOSHost(flagSaveDir, gameName),
		Saves: hooks,
	}
	v.Syscalls = func(vv *vm.VM, tag int32) error {
		return exec.Dispatch(vv, tag)
	}
	return v, hooks, nil
}
