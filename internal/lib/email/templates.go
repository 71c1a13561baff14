package email

// Template is a string-based enum naming email templates.
type Template string

const (
	// TemplateScanReport corresponds to templates/emails/scan_report.html
	TemplateScanReport Template = "scan_report"
)
