package presence

import (
	"fmt"
	"time"
)

// FormattedLastSeen renders a presence state as the human string shown in
// profiles and the sidebar. Deterministic in (now, state).
func FormattedLastSeen(now time.Time, st State) string {
	if st.IsOnline {
		return "online"
	}
	d := now.Sub(st.LastSeen)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d mins ago", int(d.Minutes()))
	case d < 6*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 24*time.Hour:
		return "today at " + st.LastSeen.Format("15:04")
	}

	days := int(d.Hours() / 24)
	switch {
	case days == 1:
		return "yesterday at " + st.LastSeen.Format("15:04")
	case days < 7:
		return st.LastSeen.Format("Monday") + " at " + st.LastSeen.Format("15:04")
	default:
		return st.LastSeen.Format("Jan 2, 2006")
	}
}
