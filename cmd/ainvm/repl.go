package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ainrun/ainvm/vm"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl <image>",
		Short: "interactive stepping console: breakpoints, single-step, frame/stack dumps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, hooks, err := buildVM(args[0])
			if err != nil {
				return err
			}
			defer hooks.Close()
			if err := v.Start(); err != nil {
				return err
			}
			return runRepl(v)
		},
	}
}

// runRepl is the CLI-side counterpart to the out-of-scope interactive
// debugger: it only ever touches the core through Step, the breakpoint
// table, and the frame/operand-stack introspection the core already
// exposes for CALLSYS's GetFuncStackName.
func runRepl(v *vm.VM) error {
	rl, err := readline.New("ainvm> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("ainvm repl: step, continue, break <ip>, clear <ip>, frames, stack, quit")
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "step", "s":
			done, err := v.Step()
			reportStep(v, done, err)
		case "continue", "c":
			for {
				done, err := v.Step()
				if err != nil {
					fmt.Println("error:", err)
					break
				}
				if done {
					fmt.Println("returned")
					break
				}
				if v.Breakpoints.Hit(v.IP) {
					fmt.Printf("breakpoint hit at ip=%#x\n", v.IP)
					break
				}
			}
		case "break", "b":
			ip, ok := parseIP(fields)
			if ok {
				v.Breakpoints.Set(ip)
			}
		case "clear":
			ip, ok := parseIP(fields)
			if ok {
				v.Breakpoints.Clear(ip)
			}
		case "frames":
			for i, name := range v.FrameNames() {
				fmt.Printf("#%d %s\n", i, name)
			}
		case "stack":
			n := v.Operand.Len()
			for i := 0; i < n; i++ {
				fmt.Printf("[%d] %d\n", i, v.Operand.Peek(i).Int())
			}
		case "quit", "q":
			return nil
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func reportStep(v *vm.VM, done bool, err error) {
	switch {
	case err != nil:
		fmt.Println("error:", err)
	case done:
		fmt.Println("returned")
	default:
		fmt.Printf("ip=%#x\n", v.IP)
	}
}

func parseIP(fields []string) (uint32, bool) {
	if len(fields) < 2 {
		fmt.Println("usage:", fields[0], "<ip>")
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32)
	if err != nil {
		fmt.Println("bad address:", fields[1])
		return 0, false
	}
	return uint32(n), true
}
