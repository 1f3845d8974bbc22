package chat

import (
	"bufio"
	"net"
)

// startOutboundWriter drains out onto conn until out is closed. After the
// first write error onErr is called once and the remaining frames are
// discarded, so senders never block on a dead peer.
func startOutboundWriter(conn net.Conn, out <-chan []byte, done chan<- struct{}, onErr func(error)) {
	go func() {
		defer close(done)
		w := bufio.NewWriter(conn)
		failed := false
		for frame := range out {
			if failed {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				failed = true
				onErr(err)
				continue
			}
			if err := w.Flush(); err != nil {
				failed = true
				onErr(err)
			}
		}
	}()
}
