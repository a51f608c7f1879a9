// Package guidance adjusts subconscious steering after each conscious decision.
package guidance

import (
	"math"
	"strings"

	"mindloop/internal/logging"
	"mindloop/internal/types"

	"github.com/samber/lo"
)

// Feedback applies guidance deltas within fixed temperature bounds.
type Feedback struct {
	minTemp float64
	maxTemp float64
}

// NewFeedback returns a Feedback clamping temperature to [minTemp, maxTemp].
func NewFeedback(minTemp, maxTemp float64) *Feedback {
	if minTemp > maxTemp {
		minTemp, maxTemp = maxTemp, minTemp
	}
	return &Feedback{minTemp: minTemp, maxTemp: maxTemp}
}

// Apply returns g with d applied. Tags behave as an insertion-ordered set;
// temperature saturates at the bounds. g itself is not modified.
func (f *Feedback) Apply(g types.Guidance, d types.GuidanceDelta) types.Guidance {
	out := g.Clone()

	tags := lo.Uniq(out.FocusTags)
	for _, tag := range d.FocusTagsAdd {
		tag = strings.TrimSpace(tag)
		if tag == "" || lo.Contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	out.FocusTags = lo.Without(tags, d.FocusTagsRemove...)

	adj := d.TemperatureAdjustment
	if math.IsNaN(adj) {
		adj = 0
	}
	temp := out.Temperature
	if math.IsNaN(temp) {
		temp = types.DefaultTemperature
	}
	out.Temperature = lo.Clamp(temp+adj, f.minTemp, f.maxTemp)

	if adj != 0 || len(d.FocusTagsAdd) > 0 || len(d.FocusTagsRemove) > 0 {
		logging.HeartbeatDebug("Guidance: tags=%v temperature %.2f -> %.2f", out.FocusTags, g.Temperature, out.Temperature)
	}
	return out
}
