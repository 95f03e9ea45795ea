// Command npusim runs the NPU cycle-accurate simulator.
package main

import "github.com/tebeka/atexit"

func main() {
	Execute()
	atexit.Exit(0)
}
