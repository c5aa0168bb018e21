package ledger

// RateTable maps region codes to each currency's rate against the BRICS
// reference unit. It is supplied by the valuation subsystem on every call
// and never persisted or cached by the engine.
type RateTable map[string]float64

// regionByCurrency maps member currencies to the region codes the
// valuation subsystem keys its rates by.
var regionByCurrency = map[string]string{
	"CNY": "CN",
	"INR": "IN",
	"RUB": "RU",
	"BRL": "BR",
	"ZAR": "ZA",
}

// Rate looks up the reference-unit rate for a currency code.
func (rt RateTable) Rate(currency string) (float64, bool) {
	region, ok := regionByCurrency[currency]
	if !ok {
		return 0, false
	}
	rate, ok := rt[region]
	if !ok || rate == 0 {
		return 0, false
	}
	return rate, true
}

// AmountBasis declares which currency an input amount is denominated in.
type AmountBasis string

const (
	// BasisLocal: the amount is in the sender's (for requests: payer's)
	// local currency.
	BasisLocal AmountBasis = "local"
	// BasisReference: the amount is in the BRICS reference unit.
	BasisReference AmountBasis = "reference"
	// BasisRequester: the amount is in the requester's currency.
	// Valid for money requests only.
	BasisRequester AmountBasis = "requester"
)

// conversion carries one transfer's amounts in all three denominations.
// All currency math pivots through the reference unit; nothing is rounded
// before persistence.
type conversion struct {
	senderAmount    float64
	referenceAmount float64
	receiverAmount  float64
	senderRate      float64
	receiverRate    float64
}

func convert(amount float64, basis AmountBasis, senderRate, receiverRate float64) conversion {
	c := conversion{senderRate: senderRate, receiverRate: receiverRate}
	if basis == BasisReference {
		c.referenceAmount = amount
		c.senderAmount = amount * senderRate
	} else {
		c.senderAmount = amount
		c.referenceAmount = amount / senderRate
	}
	c.receiverAmount = c.referenceAmount * receiverRate
	return c
}
