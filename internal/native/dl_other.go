//go:build !(darwin || freebsd || linux)

package native

import (
	"fmt"
	"runtime"
)

func openLibrary(path string) (uintptr, error) {
	return 0, fmt.Errorf("loading native modules is not supported on %s", runtime.GOOS)
}

func lookup(uintptr, string) (uintptr, error) {
	return 0, fmt.Errorf("loading native modules is not supported on %s", runtime.GOOS)
}

func closeLibrary(uintptr) error { return nil }

func bindFunc(any, uintptr) {}
