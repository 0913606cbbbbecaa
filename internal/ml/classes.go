package ml

import "exoplanet-classifier/internal/common"

var classDescriptions = map[string]string{
	common.ClassConfirmed:     "The signal is strong and consistent with a planetary body transiting its star.",
	common.ClassCandidate:     "The signal shows promise but may require further observation or vetting to be confirmed.",
	common.ClassFalsePositive: "The signal is likely caused by other phenomena, such as an eclipsing binary star system.",
}

// DescribeClass returns a one-sentence interpretation of a disposition.
func DescribeClass(label string) string {
	if d, ok := classDescriptions[label]; ok {
		return d
	}
	return "Unknown disposition."
}
