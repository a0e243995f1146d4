package cloudapi

// Wire shapes for the Cloud API /messages endpoint.

type textBody struct {
	Body string `json:"body"`
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Text             textBody `json:"text"`
}

type documentRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
}

type documentMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Document         documentRef `json:"document"`
}

// Row is one selectable entry in an interactive list message.
type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Section groups rows under a title in an interactive list message.
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// List describes an interactive list message.
type List struct {
	Header   string
	Body     string
	Footer   string
	Button   string
	Sections []Section
}

type listHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type listText struct {
	Text string `json:"text"`
}

type listAction struct {
	Button   string    `json:"button"`
	Sections []Section `json:"sections"`
}

type listInteractive struct {
	Type   string     `json:"type"`
	Header listHeader `json:"header"`
	Body   listText   `json:"body"`
	Footer listText   `json:"footer"`
	Action listAction `json:"action"`
}

type listMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      listInteractive `json:"interactive"`
}

func newListMessage(to string, list List) listMessage {
	button := list.Button
	if button == "" {
		button = "Ver opciones"
	}
	return listMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: listInteractive{
			Type:   "list",
			Header: listHeader{Type: "text", Text: list.Header},
			Body:   listText{Text: list.Body},
			Footer: listText{Text: list.Footer},
			Action: listAction{Button: button, Sections: list.Sections},
		},
	}
}
