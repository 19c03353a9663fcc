// Package render builds the chat-facing message strings: the room
// announcement posted when a wheel is proposed, and the result posted when a
// spin finishes.
package render

import (
	"strings"

	"github.com/velikanov/wheelroom/internal/wheel"
)

// RoomAnnounce builds the invitation message for a freshly proposed wheel:
// who proposed it, where the frontend lives, and who has accepted so far.
func RoomAnnounce(frontendURL, roomID, hostID string, players []string) string {
	var b strings.Builder
	b.WriteString("Кто будет крутить колесо? [Предложил <@")
	b.WriteString(hostID)
	b.WriteString(">]")
	b.WriteString("\nКолесо находится по ссылке: ")
	b.WriteString(frontendURL)
	b.WriteString("/#")
	b.WriteString(roomID)

	if len(players) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	for i, p := range players {
		if i > 0 {
			if i == len(players)-1 {
				b.WriteString(" и ")
			} else {
				b.WriteString(", ")
			}
		}
		b.WriteString("<@")
		b.WriteString(p)
		b.WriteString(">")
	}
	if len(players) > 1 {
		b.WriteString(" будут крутить колесо")
	} else {
		b.WriteString(" будет крутить колесо")
	}
	return b.String()
}

// WheelResult lists the selectable items in wheel order and marks the one the
// spin landed on. The items slice is expected to already exclude bans.
func WheelResult(items []wheel.Item, selectedID string) string {
	var b strings.Builder
	b.WriteString("Колесо прокручено:")
	for _, it := range items {
		b.WriteString("\n")
		b.WriteString(it.Name)
		if it.ID == selectedID {
			b.WriteString(" <-")
		}
	}
	return b.String()
}
