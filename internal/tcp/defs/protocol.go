package defs

import "time"

// Protocol constants
const (
	MagicNumber uint16 = 0xC0DE
	HeaderSize         = 8

	// Message types
	MsgJoin      byte = 0x01
	MsgLeave     byte = 0x02
	MsgPing      byte = 0x03
	MsgResult    byte = 0x04
	MsgError     byte = 0x05
	MsgConnected byte = 0x06
	MsgPong      byte = 0x07

	// Configuration constants
	ConnectionRetryDelay = 1 * time.Second
)
