package conversation

// Cell is the rendering strategy chosen for an entry.
type Cell int

const (
	CellUnsupported Cell = iota
	CellMessage
	CellAttachment
	CellLinkPreview
	CellLocation
	CellRetraction
	CellReceiptMarker
	CellInvitation
	CellUnreadSeparator
)

var cellNames = [...]string{
	CellUnsupported:     "unsupported",
	CellMessage:         "message",
	CellAttachment:      "attachment",
	CellLinkPreview:     "link_preview",
	CellLocation:        "location",
	CellRetraction:      "retraction",
	CellReceiptMarker:   "receipt_marker",
	CellInvitation:      "invitation",
	CellUnreadSeparator: "unread_separator",
}

func (c Cell) String() string {
	if int(c) < len(cellNames) {
		return cellNames[c]
	}
	return "unsupported"
}

var cellsByKind = map[PayloadKind]Cell{
	KindMessage:        CellMessage,
	KindAttachment:     CellAttachment,
	KindLinkPreview:    CellLinkPreview,
	KindLocation:       CellLocation,
	KindRetraction:     CellRetraction,
	KindReceiptMarker:  CellReceiptMarker,
	KindInvitation:     CellInvitation,
	KindUnreadMessages: CellUnreadSeparator,
}

// CellFor maps an entry to exactly one cell. Kinds unknown to this build fall
// back to CellUnsupported.
func CellFor(e Entry) Cell {
	if e.Payload == nil {
		return CellUnsupported
	}
	if c, ok := cellsByKind[e.Payload.Kind()]; ok {
		return c
	}
	return CellUnsupported
}
