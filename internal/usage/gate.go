package usage

import "github.com/suPer8Hu/companion-api/internal/models"

// Gate enforces the free-tier message cap. Premium users are always admitted.
type Gate struct {
	Limit int
}

func NewGate(limit int) Gate {
	if limit < 0 {
		limit = 0
	}
	return Gate{Limit: limit}
}

type Decision struct {
	Admit        bool
	MessageCount int
	MessageLimit int
}

func (g Gate) Check(premium bool, stats *models.UsageStats) Decision {
	count := 0
	if stats != nil {
		count = stats.TotalMessages
	}
	return Decision{
		Admit:        premium || count < g.Limit,
		MessageCount: count,
		MessageLimit: g.Limit,
	}
}
