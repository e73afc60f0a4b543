package jit

import (
	"fmt"
	"runtime"
	"unsafe"
)

// unsafePointerTo converts a raw address obtained from an
// ExecutableMemory page back into an unsafe.Pointer. Isolated in its own
// tiny function so the one genuinely unsafe cast in this path is easy to
// audit.
func unsafePointerTo(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet
}

// nativeFunc is the signature CallRaw invokes the compiled entry's first
// byte as: a raw System V AMD64 call with no arguments, returning the
// int32 signal widened to int64.
type nativeFunc func() int64

// IsNativeExecutionSafe reports whether this build can even attempt a raw
// call.
func IsNativeExecutionSafe() bool {
	return runtime.GOOS == "linux" && runtime.GOARCH == "amd64"
}

// CallRaw attempts to invoke the raw machine code at mem as a bare
// function pointer. Go provides no officially supported, stable calling
// convention for this, so it is a best-effort diagnostic path, never the
// one CompiledEntry.Run uses. It recovers from any panic and reports it
// as an error instead of crashing the host process.
func CallRaw(mem *ExecutableMemory) (result int64, err error) {
	if !IsNativeExecutionSafe() {
		return 0, fmt.Errorf("jit: native execution unsupported on %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jit: raw native call panicked: %v", r)
		}
	}()
	// A Go func value points at a word holding the code address, so the
	// entry address is wrapped in one level of indirection first.
	code := unsafePointerTo(mem.Addr())
	funcval := &code
	fn := *(*nativeFunc)(unsafe.Pointer(&funcval))
	return fn(), nil
}
