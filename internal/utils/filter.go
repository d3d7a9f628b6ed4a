package utils

type ListAlertsFilter struct {
	Severity *string
	Zone     *string
}
