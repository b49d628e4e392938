//go:build llama

package runner

// cgo link directives for the in-process strategy: an rpath of $ORIGIN lets
// the loader find libllama.so next to the built binary, and -L points the
// linker at ./bin when building the llama variant.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
