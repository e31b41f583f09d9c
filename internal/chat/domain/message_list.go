package domain

// MessageList ordered messages of one room.
// Not safe for concurrent use, the owner serializes access.
type MessageList struct {
	items []ChatMessage
}

// NewMessageList create an empty MessageList
func NewMessageList() *MessageList {
	return &MessageList{}
}

// Replace drop everything and take batch as-is, order preserved
func (l *MessageList) Replace(batch []ChatMessage) {
	l.items = make([]ChatMessage, len(batch))
	copy(l.items, batch)
}

// Append add msg unless an existing entry is a duplicate of it.
// Reports whether msg was added.
func (l *MessageList) Append(msg ChatMessage) bool {
	for _, existing := range l.items {
		if existing.IsDuplicateOf(msg) {
			return false
		}
	}
	l.items = append(l.items, msg)
	return true
}

// Len number of messages
func (l *MessageList) Len() int {
	return len(l.items)
}

// Items copy of the messages in order
func (l *MessageList) Items() []ChatMessage {
	out := make([]ChatMessage, len(l.items))
	copy(out, l.items)
	return out
}
