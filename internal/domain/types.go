package domain

// Attachment is one file attached to an inbound chat message.
type Attachment struct {
	Filename    string
	URL         string
	ContentType string
	Size        int
}
