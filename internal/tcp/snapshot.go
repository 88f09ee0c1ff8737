package tcp

// Snapshot is a JSON-serializable view of an Endpoint's internal state,
// grounded on the teacher's tcpConnSnapshot/collectDebugStatus pattern for
// exposing connection internals over a debug HTTP endpoint.
type Snapshot struct {
	Active         bool   `json:"active"`
	Established    bool   `json:"established"`
	SenderISN      uint32 `json:"senderIsn"`
	SenderStarted  bool   `json:"senderStarted"`
	SenderFinished bool   `json:"senderFinished"`
	BytesPopped    uint64 `json:"bytesPopped"`
	InFlight       int    `json:"sequenceNumbersInFlight"`
	LastAck        uint64 `json:"lastAck"`
	Window         uint16 `json:"window"`
	CurrentRTOMs   int    `json:"currentRtoMs"`
	ConsecutiveRtx int    `json:"consecutiveRetransmissions"`

	ReceiverISN      *uint32 `json:"receiverIsn,omitempty"`
	BytesPushed      uint64  `json:"bytesPushed"`
	ReassemblyBytes  int     `json:"reassemblyPendingBytes"`
	InboundFinished  bool    `json:"inboundFinished"`
	OutboundFinished bool    `json:"outboundFinished"`
}

// Snapshot captures a point-in-time view of the endpoint for debug
// introspection; it takes no lock of its own and is intended to be called
// from the same goroutine driving the endpoint (e.g. the eventloop) or with
// external synchronization.
func (e *Endpoint) Snapshot() Snapshot {
	sender := e.transceiver.Sender
	receiver := e.transceiver.Receiver

	snap := Snapshot{
		Active:           e.Active(),
		Established:      e.Established(),
		SenderISN:        sender.isn.Raw(),
		SenderStarted:    sender.started,
		SenderFinished:   sender.finished,
		BytesPopped:      sender.bytesPopped,
		InFlight:         sender.SequenceNumbersInFlight(),
		LastAck:          sender.lastAck,
		Window:           sender.window,
		CurrentRTOMs:     sender.timer.currentRTO(),
		ConsecutiveRtx:   sender.consecutiveRetransmissions,
		BytesPushed:      e.Inbound.BytesPushed(),
		ReassemblyBytes:  e.reassembler.BytesPending(),
		InboundFinished:  e.Inbound.IsFinished(),
		OutboundFinished: e.Outbound.IsFinished(),
	}
	if receiver.isn != nil {
		raw := receiver.isn.Raw()
		snap.ReceiverISN = &raw
	}
	return snap
}
