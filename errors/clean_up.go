package errors

import (
	"fmt"
)

// CleanUp is defer-able syntactic sugar that calls f and reports an error, if
// any, to *err. The mmap/Shm channel backends (spec §4.2) use this to close
// a backing mapping and a backing file descriptor in one Close call without
// losing whichever of the two failed:
//
//   func (m *mmapFdBackend) Close() (err error) {
//     errors.CleanUp(func() error { return unix.Munmap(m.data) }, &err)
//     errors.CleanUp(m.f.Close, &err)
//     return err
//   }
//
// If the caller returns with its own error, any error from cleanUp will be
// chained. There is no context-ful variant: every backend's teardown in this
// module is a synchronous syscall, never one a caller would want to cancel
// mid-flight.
func CleanUp(cleanUp func() error, dst *error) {
	addErr(cleanUp(), dst)
}

func addErr(err2 error, dst *error) {
	if err2 == nil {
		return
	}
	if *dst == nil {
		*dst = err2
		return
	}
	// Note: We don't chain err2 as *dst's cause because *dst may already have a meaningful cause.
	// Also, even if *dst didn't, err2 may be something entirely different, and suggesting it's
	// the cause could be misleading.
	// TODO: Consider using a standardized multiple-errors representation like sync/multierror's.
	*dst = E(*dst, fmt.Sprintf("second error in Close: %v", err2))
}
