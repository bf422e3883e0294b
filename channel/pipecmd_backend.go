package channel

import (
	"bufio"
	"io"
	"os/exec"
	"strings"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("PipeCmd", func() Backend { return &pipeCmdBackend{} })
}

// pipeCmdBackend spawns a subprocess and connects a half-duplex pipe to
// either its stdout (read mode) or its stdin (write mode); bidirectional
// use is not supported, per spec §4.2.
type pipeCmdBackend struct {
	baseBackend
	cmd *exec.Cmd
	r   *bufio.Reader
	wc  io.WriteCloser
}

func (p *pipeCmdBackend) Open(tail string, mode Mode, perm uint32) error {
	argv := strings.Fields(tail)
	if len(argv) == 0 {
		return errors.E(errors.BadInfoString, "PipeCmd:// requires a command")
	}
	return p.start(argv, mode)
}

func (p *pipeCmdBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	cmdline, ok := rv.Get("cmd")
	if !ok {
		return errors.E(errors.BadInfoString, "PipeCmd backend requires a 'cmd' key")
	}
	return p.start(strings.Fields(cmdline), mode)
}

func (p *pipeCmdBackend) start(argv []string, mode Mode) error {
	if mode.CanRead() && mode.CanWrite() {
		return errors.E(errors.BadMode, "PipeCmd backend does not support bidirectional mode")
	}
	p.cmd = exec.Command(argv[0], argv[1:]...)
	if mode.CanRead() {
		stdout, err := p.cmd.StdoutPipe()
		if err != nil {
			return errors.E(errors.UnableToConnect, "creating PipeCmd stdout pipe", err)
		}
		p.r = bufio.NewReader(stdout)
	}
	if mode.CanWrite() {
		stdin, err := p.cmd.StdinPipe()
		if err != nil {
			return errors.E(errors.UnableToConnect, "creating PipeCmd stdin pipe", err)
		}
		p.wc = stdin
	}
	if err := p.cmd.Start(); err != nil {
		return errors.E(errors.UnableToConnect, "starting PipeCmd subprocess", err)
	}
	return nil
}

func (p *pipeCmdBackend) Read(buf []byte) (int, error) {
	if p.r == nil {
		return 0, errors.E(errors.AccessViolation, "PipeCmd backend not opened for reading")
	}
	return p.r.Read(buf)
}

func (p *pipeCmdBackend) Write(buf []byte) (int, error) {
	if p.wc == nil {
		return 0, errors.E(errors.AccessViolation, "PipeCmd backend not opened for writing")
	}
	return p.wc.Write(buf)
}

func (p *pipeCmdBackend) Close() error {
	var err error
	if p.wc != nil {
		err = p.wc.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		if waitErr := p.cmd.Wait(); waitErr != nil && err == nil {
			err = waitErr
		}
	}
	return err
}

func (p *pipeCmdBackend) Type() SemanticType { return TypeGenericHandle }
