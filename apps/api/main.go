package main

import (
	_ "net/http/pprof" // registers /debug/pprof on the debug server
)

func main() {
	startWithDig()
}
