package defs

import "gitlab.com/codepractice.net/internal/push"

var eventTypes = map[string]byte{
	push.EventJoin:      MsgJoin,
	push.EventLeave:     MsgLeave,
	push.EventPing:      MsgPing,
	push.EventResult:    MsgResult,
	push.EventError:     MsgError,
	push.EventConnected: MsgConnected,
	push.EventPong:      MsgPong,
}

var typeEvents = func() map[byte]string {
	m := make(map[byte]string, len(eventTypes))
	for event, msgType := range eventTypes {
		m[msgType] = event
	}
	return m
}()

// MessageType maps a push event name to its frame type
func MessageType(event string) (byte, bool) {
	t, ok := eventTypes[event]
	return t, ok
}

// EventName maps a frame type to its push event name
func EventName(msgType byte) (string, bool) {
	e, ok := typeEvents[msgType]
	return e, ok
}
