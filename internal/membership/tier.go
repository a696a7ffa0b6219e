package membership

// Tier is the membership level sent to the backend.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierBasic      Tier = "BASIC"
	TierSponsoring Tier = "SPONSORING"
)

// Choice is the path picked on the plan screen.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceFree
	ChoicePaid
)

func (c Choice) String() string {
	switch c {
	case ChoiceFree:
		return "free"
	case ChoicePaid:
		return "paid"
	default:
		return "none"
	}
}

// DeriveTier uses only the locally remembered selection.
func DeriveTier(choice Choice, plan Plan) Tier {
	if choice != ChoicePaid {
		return TierFree
	}
	if plan.Sponsoring() {
		return TierSponsoring
	}
	return TierBasic
}

// PaymentType is the backend's payment tag.
type PaymentType string

const (
	PaymentNone   PaymentType = "none"
	PaymentPayPal PaymentType = "paypal"
)

func PaymentTypeFor(t Tier) PaymentType {
	if t == TierFree {
		return PaymentNone
	}
	return PaymentPayPal
}
