package policy

// expectedValue: first match wins, top to bottom.
//
//	EV > 20 and p > 0.7 -> High Priority Call
//	EV > 0              -> Send Email Coupon
//	otherwise           -> No Action
type expectedValue struct {
	c Constants
}

const highPriorityMinValue = 20

func (expectedValue) Name() Name { return ExpectedValue }

func (p expectedValue) Decide(probability float64) Decision {
	ev := p.c.ExpectedUpliftValue(probability)
	d := Decision{ExpectedUpliftValue: ev, IsHighRisk: isHighRisk(probability)}
	switch {
	case ev > highPriorityMinValue && probability > HighRiskThreshold:
		d.Action = ActionHighPriorityCall
	case ev > 0:
		d.Action = ActionSendEmailCoupon
	default:
		d.Action = ActionNoAction
	}
	return d
}

// riskTier ignores the monetary value when choosing the action; the value is
// still reported.
//
//	p > 0.8  -> Call Customer
//	p >= 0.5 -> Send Coupon
//	otherwise -> Retain
type riskTier struct {
	c Constants
}

const (
	callCustomerThreshold = 0.8
	sendCouponThreshold   = 0.5
)

func (riskTier) Name() Name { return RiskTier }

func (p riskTier) Decide(probability float64) Decision {
	d := Decision{
		ExpectedUpliftValue: p.c.ExpectedUpliftValue(probability),
		IsHighRisk:          isHighRisk(probability),
	}
	switch {
	case probability > callCustomerThreshold:
		d.Action = ActionCallCustomer
	case probability >= sendCouponThreshold:
		d.Action = ActionSendCoupon
	default:
		d.Action = ActionRetain
	}
	return d
}
