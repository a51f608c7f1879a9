package guidance

import (
	"math"
	"testing"

	"mindloop/internal/types"

	"github.com/stretchr/testify/assert"
)

func base(temp float64, tags ...string) types.Guidance {
	g := types.DefaultGuidance()
	g.Temperature = temp
	g.FocusTags = append([]string{}, tags...)
	return g
}

func TestApply_TemperatureSaturates(t *testing.T) {
	f := NewFeedback(0.1, 1.2)

	tests := []struct {
		name  string
		start float64
		adj   float64
		want  float64
	}{
		{"plus ten from one", 1.0, 10, 1.2},
		{"minus ten from half", 0.5, -10, 0.1},
		{"inside bounds", 0.5, 0.2, 0.7},
		{"exact upper bound", 1.0, 0.2, 1.2},
		{"no change", 0.9, 0, 0.9},
		{"nan adjustment ignored", 0.9, math.NaN(), 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Apply(base(tt.start), types.GuidanceDelta{TemperatureAdjustment: tt.adj})
			assert.InDelta(t, tt.want, got.Temperature, 1e-9)
			assert.GreaterOrEqual(t, got.Temperature, 0.1)
			assert.LessOrEqual(t, got.Temperature, 1.2)
		})
	}
}

func TestApply_TagsAreOrderedSet(t *testing.T) {
	f := NewFeedback(0.1, 1.2)
	start := base(0.9, "music", "jazz")

	got := f.Apply(start, types.GuidanceDelta{
		FocusTagsAdd:    []string{"jazz", "history", "music", "history", ""},
		FocusTagsRemove: []string{"absent"},
	})
	assert.Equal(t, []string{"music", "jazz", "history"}, got.FocusTags)

	got = f.Apply(got, types.GuidanceDelta{FocusTagsRemove: []string{"jazz"}})
	assert.Equal(t, []string{"music", "history"}, got.FocusTags)

	assert.Equal(t, []string{"music", "jazz"}, start.FocusTags, "input is not mutated")
}

func TestApply_AddThenRemoveSameTick(t *testing.T) {
	f := NewFeedback(0.1, 1.2)
	got := f.Apply(base(0.9), types.GuidanceDelta{
		FocusTagsAdd:    []string{"x"},
		FocusTagsRemove: []string{"x"},
	})
	assert.Empty(t, got.FocusTags)
}

func TestApply_KeepsExtras(t *testing.T) {
	f := NewFeedback(0.1, 1.2)
	g := base(0.9)
	g.Style = "socratic"
	g.MaxIdeas = 2

	got := f.Apply(g, types.GuidanceDelta{})
	assert.Equal(t, "socratic", got.Style)
	assert.Equal(t, 2, got.MaxIdeas)
}

func TestNewFeedback_SwapsInvertedBounds(t *testing.T) {
	f := NewFeedback(1.2, 0.1)
	got := f.Apply(base(0.5), types.GuidanceDelta{TemperatureAdjustment: 5})
	assert.Equal(t, 1.2, got.Temperature)
}
