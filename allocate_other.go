//go:build !linux

package firefoxdp

import "os/exec"

func allocateCmdOptions(*exec.Cmd) {}
