package comm

// DataReceivedEvent carries one coalesced payload read from the peer.
// Data is a fresh slice owned by the receiver.
type DataReceivedEvent struct {
	Communicator *Communicator
	Data         []byte
}

// ExceptionEvent reports a steady-state failure.  For an acceptor it
// describes a failed accept or a recovered panic; Communicator is then
// the connection involved, or nil when none was.
type ExceptionEvent struct {
	Communicator *Communicator
	Err          error
}

// ConnectedEvent is raised by an acceptor for every accepted connection,
// before the acceptor starts tracking it.
type ConnectedEvent struct {
	Communicator *Communicator
}

// DisconnectedEvent is raised by an acceptor for each communicator it
// drops while being disposed.
type DisconnectedEvent struct {
	Communicator *Communicator
}

// DisposingEvent is raised once, when disposal of a communicator begins
// and before its connection is released.
type DisposingEvent struct {
	Communicator *Communicator
}
