package conversation

import (
	"fmt"

	"github.com/goccy/go-json"
)

// PayloadKind tags the variant carried by an entry.
type PayloadKind string

const (
	KindMessage        PayloadKind = "message"
	KindRetraction     PayloadKind = "retraction"
	KindAttachment     PayloadKind = "attachment"
	KindLinkPreview    PayloadKind = "link_preview"
	KindLocation       PayloadKind = "location"
	KindReceiptMarker  PayloadKind = "receipt_marker"
	KindInvitation     PayloadKind = "invitation"
	KindUnreadMessages PayloadKind = "unread_messages"
)

// Payload is the content of an entry.
type Payload interface {
	Kind() PayloadKind
}

// Message is a plain text message.
type Message struct {
	Body      string `json:"body"`
	Corrected bool   `json:"corrected,omitempty"`
}

// Retraction replaces a message that its author withdrew.
type Retraction struct{}

// Attachment is a shared file.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// LinkPreview is a preview card for a URL sent in a neighbouring message.
type LinkPreview struct {
	URL string `json:"url"`
}

// Location is a shared geo location.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// ReceiptType is the chat marker being aggregated.
type ReceiptType string

const (
	ReceiptReceived  ReceiptType = "received"
	ReceiptDisplayed ReceiptType = "displayed"
)

// ReceiptMarker aggregates chat markers (who has seen the conversation up to here).
type ReceiptMarker struct {
	Type    ReceiptType `json:"type"`
	Senders []Sender    `json:"senders,omitempty"`
}

// Invitation is an invite to join a group chat or channel.
type Invitation struct {
	Room     string `json:"room"`
	Password string `json:"password,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// URI returns the xmpp: URI joining the invited room.
func (i Invitation) URI() string {
	if i.Password != "" {
		return "xmpp:" + i.Room + "?join;password=" + i.Password
	}
	return "xmpp:" + i.Room + "?join"
}

// UnreadMessages is the synthetic separator between read and unread content.
type UnreadMessages struct {
	Count int `json:"count"`
}

// Unknown carries a payload whose kind this build does not understand.
type Unknown struct {
	Type PayloadKind
	Raw  []byte
}

func (Message) Kind() PayloadKind        { return KindMessage }
func (Retraction) Kind() PayloadKind     { return KindRetraction }
func (Attachment) Kind() PayloadKind     { return KindAttachment }
func (LinkPreview) Kind() PayloadKind    { return KindLinkPreview }
func (Location) Kind() PayloadKind       { return KindLocation }
func (ReceiptMarker) Kind() PayloadKind  { return KindReceiptMarker }
func (Invitation) Kind() PayloadKind     { return KindInvitation }
func (UnreadMessages) Kind() PayloadKind { return KindUnreadMessages }
func (u Unknown) Kind() PayloadKind      { return u.Type }

// EncodePayload serialises a payload to its kind and JSON body.
func EncodePayload(p Payload) (PayloadKind, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("encode payload: nil payload")
	}
	if u, ok := p.(Unknown); ok {
		return u.Type, u.Raw, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return p.Kind(), data, nil
}

// DecodePayload is the inverse of EncodePayload. Unrecognised kinds decode to
// Unknown so newer data survives a round trip through an older client.
func DecodePayload(kind PayloadKind, data []byte) (Payload, error) {
	var p Payload
	var err error
	switch kind {
	case KindMessage:
		p, err = decodeAs[Message](data)
	case KindRetraction:
		p = Retraction{}
	case KindAttachment:
		p, err = decodeAs[Attachment](data)
	case KindLinkPreview:
		p, err = decodeAs[LinkPreview](data)
	case KindLocation:
		p, err = decodeAs[Location](data)
	case KindReceiptMarker:
		p, err = decodeAs[ReceiptMarker](data)
	case KindInvitation:
		p, err = decodeAs[Invitation](data)
	case KindUnreadMessages:
		p, err = decodeAs[UnreadMessages](data)
	default:
		p = Unknown{Type: kind, Raw: data}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

func decodeAs[T Payload](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

// Body returns the searchable text of a payload, empty for non-text kinds.
func Body(p Payload) string {
	switch v := p.(type) {
	case Message:
		return v.Body
	case Attachment:
		return v.Filename
	case Invitation:
		return v.Reason
	default:
		return ""
	}
}
