// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

// MultiplexSeparator joins a service name and a method name in a
// multiplexed message.
const MultiplexSeparator = ":"

// Multiplexed prefixes outgoing CALL and ONEWAY method names with a service
// name so that one connection can address several services.
type Multiplexed struct {
	Protocol
	service string
}

// NewMultiplexed wraps p for service.
func NewMultiplexed(p Protocol, service string) *Multiplexed {
	return &Multiplexed{Protocol: p, service: service}
}

func (m *Multiplexed) WriteMessageBegin(name string, typ MessageType, seqid int32) error {
	if typ == CALL || typ == ONEWAY {
		name = m.service + MultiplexSeparator + name
	}
	return m.Protocol.WriteMessageBegin(name, typ, seqid)
}

// StoredMessage replays an already consumed message header on the next
// ReadMessageBegin, then delegates to the wrapped protocol.
type StoredMessage struct {
	Protocol
	name   string
	typ    MessageType
	seqid  int32
	replay bool
}

// NewStoredMessage wraps p so that the next ReadMessageBegin returns the
// given header.
func NewStoredMessage(p Protocol, name string, typ MessageType, seqid int32) *StoredMessage {
	return &StoredMessage{Protocol: p, name: name, typ: typ, seqid: seqid, replay: true}
}

func (s *StoredMessage) ReadMessageBegin() (string, MessageType, int32, error) {
	if s.replay {
		s.replay = false
		return s.name, s.typ, s.seqid, nil
	}
	return s.Protocol.ReadMessageBegin()
}
