package model

// SampleAlerts is the demo alert catalog served by the API and used by the
// starter. The customer IDs match the seeded CRM records.
func SampleAlerts() []Alert {
	return []Alert{
		{
			AlertID:     "ALERT-001",
			CustomerID:  102,
			AlertType:   "unusual_roaming",
			Description: "Data usage spiked to 20GB/day while roaming abroad, with a SIM swap request from the same location",
			Timestamp:   "2026-08-22T03:05:00Z",
			Severity:    SeverityCritical,
		},
		{
			AlertID:     "ALERT-002",
			CustomerID:  103,
			AlertType:   "billing_dispute",
			Description: "Repeated premium SMS subscriptions and a third-party content purchase disputed within 48 hours",
			Timestamp:   "2026-08-21T14:30:00Z",
			Severity:    SeverityHigh,
		},
		{
			AlertID:     "ALERT-003",
			CustomerID:  101,
			AlertType:   "usage_anomaly",
			Description: "Minor deviation from usage baseline on a basic plan",
			Timestamp:   "2026-08-22T09:15:00Z",
			Severity:    SeverityLow,
		},
	}
}
