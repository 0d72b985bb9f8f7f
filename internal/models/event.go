package models

// ImageRef points at an image attachment held by the chat transport. The
// bytes are fetched through the transport only when a workflow needs them.
type ImageRef struct {
	ID string
}

// Event is one incoming chat update.
//
// Exactly one of Text, Image or Choice is normally set. Choice carries the
// opaque token of a pressed button.
type Event struct {
	SenderID string
	Text     string
	Image    *ImageRef
	Choice   string
}

// Choice is a selectable button attached to a reply.
type Choice struct {
	Label string
	Token string
}

// Reply is one outgoing message. Text uses a small Markdown subset
// (**bold**, `code`). ImageURL, when set, turns the reply into a picture
// with Text as its caption.
type Reply struct {
	Text          string
	ImageURL      string
	Choices       []Choice
	ChoicesPerRow int
}

// ChoiceRows splits Choices into rows of ChoicesPerRow (at least one).
func (r Reply) ChoiceRows() [][]Choice {
	per := r.ChoicesPerRow
	if per < 1 {
		per = 1
	}
	var rows [][]Choice
	for i := 0; i < len(r.Choices); i += per {
		end := i + per
		if end > len(r.Choices) {
			end = len(r.Choices)
		}
		rows = append(rows, r.Choices[i:end])
	}
	return rows
}
