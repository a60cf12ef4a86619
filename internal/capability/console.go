package capability

import (
	"fmt"
	"strings"

	"tcpcomm/internal/comm"
	"tcpcomm/internal/session"
	"tcpcomm/util"
)

// Console is the server-side behaviour: every payload is logged as
// "client <tag>: <text>" and copied to the session output, and sent back
// to the peer when Echo is set.
type Console struct {
	Echo bool
}

// Attach subscribes the payload and failure handlers.
func (k *Console) Attach(sess *session.Session) {
	sess.Comm.OnDataReceived(func(ev comm.DataReceivedEvent) {
		sess.Logger.Append(fmt.Sprintf("client %v: %s", ev.Communicator.Tag(), Text(ev.Data)), util.LevelNormal, "")
		sess.Write(ev.Data) //nolint:errcheck
		if k.Echo {
			ev.Communicator.Send(ev.Data) //nolint:errcheck
		}
	})
	sess.Comm.OnException(func(ev comm.ExceptionEvent) {
		sess.Logger.Report(ev.Err)
		if !ev.Communicator.IsConnected() {
			ev.Communicator.Dispose()
		}
	})
}

// Text renders a payload for a log line: invalid UTF-8 is replaced and
// the trailing line break dropped.
func Text(data []byte) string {
	s := strings.ToValidUTF8(string(data), "�")
	return strings.TrimRight(s, "\r\n")
}
