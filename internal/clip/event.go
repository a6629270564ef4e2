package clip

// Event is what a capture source hands to the pipeline.
// Text events carry Text; image events carry Bytes, MimeType and SourceURL.
type Event struct {
	Kind      Kind
	Text      string
	Bytes     []byte
	MimeType  string
	SourceURL string
}

// TextEvent builds a text capture event.
func TextEvent(text string) Event {
	return Event{Kind: KindText, Text: text}
}

// ImageEvent builds an image capture event.
func ImageEvent(data []byte, mimeType, sourceURL string) Event {
	return Event{Kind: KindImage, Bytes: data, MimeType: mimeType, SourceURL: sourceURL}
}
