package creator

// CommentLog is an append-only list whose capacity is fixed when the content
// record is allocated. A full log rejects further appends; nothing is evicted.
type CommentLog struct {
	items [MaxComments]Comment
	n     int
}

// Len returns the number of stored comments.
func (l *CommentLog) Len() int { return l.n }

// Full reports whether the log reached its capacity.
func (l *CommentLog) Full() bool { return l.n >= MaxComments }

// Append stores c after the existing entries.
func (l *CommentLog) Append(c Comment) error {
	if l.Full() {
		return ErrTooManyComments
	}
	l.items[l.n] = c
	l.n++
	return nil
}

// Items returns a copy of the stored comments in insertion order.
func (l *CommentLog) Items() []Comment {
	out := make([]Comment, l.n)
	copy(out, l.items[:l.n])
	return out
}
