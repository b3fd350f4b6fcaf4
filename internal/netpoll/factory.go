package netpoll

// NewPoller creates the platform-appropriate backend: epoll on Linux,
// kqueue on darwin/freebsd.
func NewPoller() (Poller, error) {
	return newPlatformPoller()
}
