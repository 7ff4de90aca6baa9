package models

import "strings"

const displayTitleRunes = 20

// DisplayTitle derives the sidebar label for a conversation from its messages.
// The result is presentation only and is never stored.
func DisplayTitle(title string, messages []Message) string {
	var userMsgs []Message
	for _, m := range messages {
		if m.Role == RoleUser {
			userMsgs = append(userMsgs, m)
		}
	}

	switch {
	case len(userMsgs) >= 2:
		return truncate(userMsgs[1].Text)
	case len(messages) > 0:
		return truncate(messages[0].Text)
	case strings.TrimSpace(title) != "":
		return title
	default:
		return "New chat"
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= displayTitleRunes {
		return s
	}
	return string(r[:displayTitleRunes]) + "..."
}
