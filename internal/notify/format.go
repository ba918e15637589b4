package notify

import (
	"fmt"
	"strings"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// FormatAlert renders the markdown push for a location whose severity rose.
// detailURL is appended as a link when set.
func FormatAlert(obs models.Observation, alerts []string, detailURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### 📍 %s 气象警报\n", obs.Location)
	for _, a := range alerts {
		b.WriteString(a)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "当前: %s %s℃ (体感 %s℃)", obs.Text, obs.Temp, obs.FeelsLike)
	if detailURL != "" {
		fmt.Fprintf(&b, "\n[详情](%s)", detailURL)
	}
	return b.String()
}
