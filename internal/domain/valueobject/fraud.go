package valueobject

type FraudType string

const (
	FraudTypeRapidAccountCreation FraudType = "rapid_account_creation"
	FraudTypeUnusualOrderPattern  FraudType = "unusual_order_pattern"
	FraudTypePriceManipulation    FraudType = "price_manipulation"
	FraudTypeReviewBombing        FraudType = "review_bombing"
	FraudTypeSuspiciousDevice     FraudType = "suspicious_device"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank упорядочивает уровни для сравнения; неизвестный уровень равен 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}
