package ledger

// Side is the direction of an asset position. A missing map entry means
// flat; SideFlat only appears transiently while netting.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the mirrored side. Flat has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// Position is one asset holding. Value tracks Quantity*Price after every
// revaluation; TakeProfit/StopLoss of zero mean "not set".
type Position struct {
	Asset      string
	Side       Side
	EntryPrice float64
	Price      float64
	Quantity   float64
	Value      float64
	TakeProfit float64
	StopLoss   float64
}

// triggered reports which trigger, if any, the current price has crossed.
// Take-profit wins when both are crossed at once.
func (p *Position) triggered() (price float64, kind string) {
	if p.TakeProfit > 0 {
		if (p.Side == SideLong && p.Price >= p.TakeProfit) ||
			(p.Side == SideShort && p.Price <= p.TakeProfit) {
			return p.TakeProfit, "take_profit"
		}
	}
	if p.StopLoss > 0 {
		if (p.Side == SideLong && p.Price <= p.StopLoss) ||
			(p.Side == SideShort && p.Price >= p.StopLoss) {
			return p.StopLoss, "stop_loss"
		}
	}
	return 0, ""
}

// setBrackets derives absolute trigger prices from ratios relative to the
// execution price. Signs invert for shorts.
func (p *Position) setBrackets(execPrice, takeProfitRatio, stopLossRatio float64) {
	if takeProfitRatio > 0 {
		if p.Side == SideLong {
			p.TakeProfit = execPrice * (1 + takeProfitRatio)
		} else {
			p.TakeProfit = execPrice * (1 - takeProfitRatio)
		}
	}
	if stopLossRatio > 0 {
		if p.Side == SideLong {
			p.StopLoss = execPrice * (1 - stopLossRatio)
		} else {
			p.StopLoss = execPrice * (1 + stopLossRatio)
		}
	}
}
