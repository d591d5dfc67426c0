package conversation

import (
	"fmt"
	"strings"
)

// EmptySummary is what both formatters produce for a conversation with
// no messages.
const EmptySummary = "Customer requested human support before writing any messages."

func senderLabel(s Sender) string {
	if s == SenderAgent {
		return "Support"
	}
	return "You"
}

func senderIcon(s Sender) string {
	if s == SenderAgent {
		return "🎧"
	}
	return "🙋"
}

// PlainSummary renders a line-oriented transcript suitable for prefill
// into the destination widget's composer. Times are local HH:MM; order
// matches the message log exactly.
func PlainSummary(c *Conversation) string {
	if len(c.Messages) == 0 {
		return EmptySummary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chat started at %s\n", c.Meta.StartTime.Local().Format("15:04"))
	if c.Meta.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", c.Meta.Topic)
	}
	b.WriteString("\n")

	for _, m := range c.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), senderLabel(m.Sender), m.Text)
	}

	b.WriteString("\nYou can continue the conversation below.")
	return b.String()
}

// AnnotatedSummary renders the agent-facing variant: per-sender counts,
// a numbered quoted message list and a synthesized summary block that
// surfaces the customer's last message as the presumed reason for the
// escalation.
func AnnotatedSummary(c *Conversation) string {
	if len(c.Messages) == 0 {
		return EmptySummary
	}

	st := c.Stats()

	var b strings.Builder
	b.WriteString("=== Conversation transcript ===\n")
	fmt.Fprintf(&b, "Started: %s\n", c.Meta.StartTime.Local().Format("2006-01-02 15:04"))
	if c.Meta.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", c.Meta.Topic)
	}
	fmt.Fprintf(&b, "Messages: %d (%d from customer, %d from support)\n\n",
		st.TotalMessages, st.CustomerMessages, st.AgentMessages)

	for i, m := range c.Messages {
		fmt.Fprintf(&b, "%d. %s %s [%s]: %q\n",
			i+1, senderIcon(m.Sender), senderLabel(m.Sender), m.Timestamp.Local().Format("15:04"), m.Text)
	}

	b.WriteString("\n--- Summary for agent ---\n")
	if last := c.LastCustomerMessage(); last != nil {
		fmt.Fprintf(&b, "Customer's last message: %q", last.Text)
	} else {
		b.WriteString("No customer messages; agent-initiated conversation.")
	}
	return b.String()
}
