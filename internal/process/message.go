package process

import "unsafe"

// NativeAsyncMethod is the runtime's stand-in for a pointer to ahead-of-time
// compiled code: the entry point a Message invokes when its receiver picks
// it up. The ahead-of-time compiler itself is an external collaborator
// (only its interface is specified); this function type is what a real
// compiled object file would hand the runtime in its place.
type NativeAsyncMethod func(self *Process, data unsafe.Pointer)

// Message is a (method, data) pair delivered asynchronously to exactly one
// receiver's mailbox. Ownership transfers from sender to receiver: in Go
// terms, the message is appended to the receiver's mailbox slice rather
// than handed off by pointer swap, since Go has no move semantics (the
// idiomatic analogue of the original's ownership transfer).
type Message struct {
	Method NativeAsyncMethod
	Data   unsafe.Pointer
	Arity  uint8
}
