//go:build !unix

package main

import "fmt"

func sendSignal(pid int, name string) error {
	return fmt.Errorf("signal delivery is not supported on this platform")
}
