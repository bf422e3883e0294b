package channel

import "github.com/hrisio/hris/errors"

func errBadMode(msg string) error       { return errors.E(errors.BadMode, msg) }
func errBadFlags(msg string) error      { return errors.E(errors.BadFlags, msg) }
func errBadInfoString(msg string) error { return errors.E(errors.BadInfoString, msg) }
func errNotSupported(msg string) error  { return errors.E(errors.NotSupported, msg) }
func errBeforeOpen() error {
	return errors.E(errors.IoCallBeforeOpen, "I/O call before open")
}
