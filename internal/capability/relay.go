package capability

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"tcpcomm/internal/comm"
	ncerr "tcpcomm/internal/errors"
	"tcpcomm/internal/session"
)

// Frame control bytes.
const (
	STX = 0x02
	SOH = 0x01
	ETX = 0x03
)

// Relay is the client-side behaviour: inbound payloads go to the
// session output, and Pump sends the session input line by line.
type Relay struct {
	Frame  bool // wrap each line as STX 'R' SOH <line> ETX
	Prompt bool // print "> " before reading each line
}

// Attach copies every inbound payload to the session output.
func (r *Relay) Attach(sess *session.Session) {
	sess.Comm.OnDataReceived(func(ev comm.DataReceivedEvent) {
		sess.Write(ev.Data) //nolint:errcheck
	})
}

// Pump reads the session input until EOF and sends each line.  It
// returns nil at EOF, ctx.Err() on cancellation and ErrNotConnected when
// the connection went away first.
func (r *Relay) Pump(ctx context.Context, sess *session.Session) error {
	if sess.Stdin == nil {
		return nil
	}
	br := bufio.NewReader(sess.Stdin)
	for {
		if r.Prompt {
			sess.Write([]byte("> ")) //nolint:errcheck
		}
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !sess.Comm.IsConnected() {
				return ncerr.ErrNotConnected
			}
			if r.Frame {
				line = Frame(bytes.TrimRight(line, "\r\n"))
			}
			if serr := sess.Comm.Send(line); serr != nil {
				return serr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Frame wraps text in the STX 'R' SOH ... ETX envelope.
func Frame(text []byte) []byte {
	out := make([]byte, 0, len(text)+4)
	out = append(out, STX, 'R', SOH)
	out = append(out, text...)
	return append(out, ETX)
}
