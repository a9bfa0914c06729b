package performance

import (
	"gonum.org/v1/gonum/stat"

	"github.com/vnnyx/lumina-capital/internal/domain"
)

// Distribution summarizes the shape of realized P&L across closed lots
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PnLDistribution computes summary statistics over the realized P&L of the
// given closed lots. Lots that are not closed are skipped.
func PnLDistribution(closed []*domain.TradeOutcome) Distribution {
	var pnls []float64
	for _, o := range closed {
		if o.Status == domain.OutcomeClosed {
			pnls = append(pnls, o.RealizedPnL)
		}
	}

	if len(pnls) == 0 {
		return Distribution{}
	}

	d := Distribution{
		Count: len(pnls),
		Mean:  stat.Mean(pnls, nil),
		Min:   pnls[0],
		Max:   pnls[0],
	}
	if len(pnls) > 1 {
		d.StdDev = stat.StdDev(pnls, nil)
	}
	for _, p := range pnls[1:] {
		if p < d.Min {
			d.Min = p
		}
		if p > d.Max {
			d.Max = p
		}
	}

	return d
}
