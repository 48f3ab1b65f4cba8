package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/suPer8Hu/companion-api/internal/models"
)

func TestGateCheck(t *testing.T) {
	g := NewGate(20)

	tests := []struct {
		name    string
		premium bool
		count   int
		admit   bool
	}{
		{"fresh user", false, 0, true},
		{"one below limit", false, 19, true},
		{"at limit", false, 20, false},
		{"above limit", false, 25, false},
		{"premium at limit", true, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Check(tt.premium, &models.UsageStats{TotalMessages: tt.count})
			assert.Equal(t, tt.admit, d.Admit)
			assert.Equal(t, tt.count, d.MessageCount)
			assert.Equal(t, 20, d.MessageLimit)
		})
	}
}

func TestGateNilStatsAndZeroLimit(t *testing.T) {
	assert.True(t, NewGate(1).Check(false, nil).Admit)
	assert.False(t, NewGate(-3).Check(false, nil).Admit)
}
