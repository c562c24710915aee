package recon

import (
	"time"

	"github.com/mkelleher/buywrite/internal/models"
)

// ProjectedFill is a fill normalized for ledger accumulation: signed size,
// venue-local date and time strings, and present-or-zero commission and
// realized P&L.
type ProjectedFill struct {
	Contract    models.Contract
	Side        models.FillSide
	SignedSize  float64 // negative for sales; contracts, not shares, for options
	Price       float64
	Commission  float64
	RealizedPNL float64
	Date        string // YYYY-MM-DD in the venue zone
	Time        string // HH:MM in the venue zone
}

// ProjectFill normalizes one raw fill. Gateway timestamps arrive in UTC and
// become venue-local ledger keys here; a sale flips the size negative, so one
// written call shows as -1.
func ProjectFill(f models.Fill, loc *time.Location) ProjectedFill {
	signed := f.Shares
	if f.Side == models.SideSld {
		signed = -signed
	}

	local := f.Time.In(loc)
	return ProjectedFill{
		Contract:    f.Contract,
		Side:        f.Side,
		SignedSize:  signed,
		Price:       f.Price,
		Commission:  f.Commission,
		RealizedPNL: f.RealizedPNL,
		Date:        local.Format("2006-01-02"),
		Time:        local.Format("15:04"),
	}
}
