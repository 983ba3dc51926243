package branch

import (
	"time"

	libtrans "github.com/yohummus/yogi-framework-sub001/transport"
)

// sendAllSync and receiveAllSync block the calling goroutine on the
// transport's async SendAll/ReceiveAll primitives. The handshake runs on
// its own goroutine per connection (mirroring the drain/fill loops in
// msgtransport), so blocking here does not stall the reactor.
func sendAllSync(tr *libtrans.TCP, p []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	tr.SendAll(p, timeout, func(err error) { done <- err })
	return <-done
}

func receiveAllSync(tr *libtrans.TCP, n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	done := make(chan error, 1)
	tr.ReceiveAll(buf, timeout, func(err error) { done <- err })
	err := <-done
	return buf, err
}
