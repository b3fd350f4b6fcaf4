package abi

import "github.com/ehrlich-b/processrt/internal/blockio"

// submitAndWait moves the process to WaitingIO, hands req to the file
// worker, and switches out. The worker's completion loop reschedules the
// process once the kernel reports req's outcome.
func submitAndWait(rc *RunContext, req *blockio.Request) {
	rc.Process.WaitForIO(nil)
	rc.Files.Submit(req)
	rc.Yield()
}

// FileOpen opens path via the giouring-backed file worker, returning the
// new fd.
func FileOpen(rc *RunContext, path string, flags, mode uint32) (int, error) {
	req := &blockio.Request{Op: blockio.OpOpenAt, Path: path, Flags: flags, Mode: mode, Waiter: rc.Process}
	submitAndWait(rc, req)
	if req.Err != nil {
		return 0, req.Err
	}
	return int(req.Res), nil
}

// FileRead reads into buf at offset.
func FileRead(rc *RunContext, fd int32, buf []byte, offset uint64) (int, error) {
	req := &blockio.Request{Op: blockio.OpRead, FD: fd, Buf: buf, Offset: offset, Waiter: rc.Process}
	submitAndWait(rc, req)
	if req.Err != nil {
		return 0, req.Err
	}
	return int(req.Res), nil
}

// FileWrite writes buf at offset.
func FileWrite(rc *RunContext, fd int32, buf []byte, offset uint64) (int, error) {
	req := &blockio.Request{Op: blockio.OpWrite, FD: fd, Buf: buf, Offset: offset, Waiter: rc.Process}
	submitAndWait(rc, req)
	if req.Err != nil {
		return 0, req.Err
	}
	return int(req.Res), nil
}

// FileClose closes fd.
func FileClose(rc *RunContext, fd int32) error {
	req := &blockio.Request{Op: blockio.OpClose, FD: fd, Waiter: rc.Process}
	submitAndWait(rc, req)
	return req.Err
}
