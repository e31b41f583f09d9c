package main

import (
	"fmt"
	"io"
	"sync"

	"marketplace_chat/internal/chat/domain"
	"marketplace_chat/internal/chat/session"
)

// roomPrinter writes each message once, plus status changes
type roomPrinter struct {
	out io.Writer

	mu         sync.Mutex
	printed    map[string]struct{}
	lastStatus domain.ConnectionStatus
	gaveUp     bool
}

func newRoomPrinter(out io.Writer) *roomPrinter {
	return &roomPrinter{
		out:     out,
		printed: make(map[string]struct{}),
	}
}

func messageKey(m domain.ChatMessage) string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%s|%s|%d", m.SenderID, m.Content, m.CreatedAt.UnixMilli())
}

func (p *roomPrinter) update(st session.State, msgs []domain.ChatMessage, isMine func(domain.ChatMessage) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Status != p.lastStatus {
		p.lastStatus = st.Status
		fmt.Fprintf(p.out, "-- %s\n", st.Status)
	}
	if st.CanRetry && !p.gaveUp {
		fmt.Fprintf(p.out, "-- connection lost after %d/%d reconnects, type /retry to reconnect\n", st.ReconnectAttempt, st.MaxAttempts)
	}
	p.gaveUp = st.CanRetry

	for _, m := range msgs {
		key := messageKey(m)
		if _, ok := p.printed[key]; ok {
			continue
		}
		p.printed[key] = struct{}{}

		who := m.SenderID
		if isMine(m) {
			who = "me"
		}
		line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04:05"), who, m.Content)
		if m.AttachedProduct != nil {
			line += fmt.Sprintf(" (product %s: %s)", m.AttachedProduct.ID, m.AttachedProduct.Title)
		}
		fmt.Fprintln(p.out, line)
	}
}
