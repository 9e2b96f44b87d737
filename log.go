package firefoxdp

import (
	"log"
)

// defaultLogf is used for general logging when no logging func is given.
var defaultLogf = log.Printf

func nopf(string, ...interface{}) {}

func prefixed(f func(string, ...interface{}), prefix string) func(string, ...interface{}) {
	return func(s string, v ...interface{}) { f(prefix+s, v...) }
}
