package attachments

import "io"

// Object is an open stored attachment.
type Object struct {
	Body        io.ReadCloser
	ContentType string
}
