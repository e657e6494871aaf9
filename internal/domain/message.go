package domain

import "time"

// Attachment is a file reference carried by an inbound message. The
// bytes are not downloaded until the attachment resolver decides the
// message needs them.
type Attachment struct {
	URL      string
	MIMEType string
	Filename string
}

// InboundMessage is a single chat event delivered by a channel.
// Command is set for slash commands (e.g. "/news"); regular channel
// messages leave it empty.
type InboundMessage struct {
	Channel     string // originating channel implementation, e.g. "slack"
	ChannelID   string
	UserID      string
	Text        string
	Command     string
	MessageTS   string
	ThreadTS    string // parent thread timestamp when the message is a thread reply
	FromBot     bool
	FromSelf    bool
	Attachments []Attachment
	Timestamp   time.Time
}

// ResolvedImage is a downloaded attachment, base64-encoded and ready
// to embed in a vision request. The raw bytes are not kept around.
type ResolvedImage struct {
	MIMEType string
	Base64   string
	Filename string
}

// OutboundMessage is a reply heading back to the chat platform.
type OutboundMessage struct {
	Channel   string
	ChannelID string
	ThreadTS  string // post as a threaded reply when set
	Text      string
}
