package types

// StreamChunk is one increment of a streamed assistant reply.
//
// Concatenating Content across all chunks of a stream reproduces the final
// reply exactly. A chunk with Done set carries no content and is always the
// last chunk; Unconfirmed marks a stream whose end was inferred from output
// quiescence rather than the page's completion marker.
type StreamChunk struct {
	Content     string `json:"content,omitempty"`
	Done        bool   `json:"done,omitempty"`
	Unconfirmed bool   `json:"unconfirmed,omitempty"`
	Err         error  `json:"-"`
}
