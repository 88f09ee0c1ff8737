package tcp

import "errors"

// errConnectionReset is the stream error latched on the inbound stream when
// a peer sends a reset-flagged segment.
var errConnectionReset = errors.New("tcp: connection reset by peer")
