package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommands maps GOOS to the program that hands a URL to the desktop.
var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"freebsd": {"xdg-open"},
	"linux":   {"xdg-open"},
	"openbsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

func browserCommand(goos, target string) (*exec.Cmd, error) {
	argv, ok := browserCommands[goos]
	if !ok {
		return nil, fmt.Errorf("no browser launcher for %s", goos)
	}
	args := append(append([]string{}, argv[1:]...), target)
	return exec.Command(argv[0], args...), nil
}

// openBrowser starts the consent page without waiting for the browser.
func openBrowser(target string) error {
	cmd, err := browserCommand(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return cmd.Start()
}
