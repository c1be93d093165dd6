package formatting

import (
	"encoding/json"
	"fmt"
	"time"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// Values that cannot be marshaled fall back to fmt's %v.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// FormatDuration renders d as m:ss, or h:mm:ss from one hour on.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
