package email

import (
	"strconv"

	"github.com/archonhq/archon/internal/domain"
)

// SendScanReportEmail sends the post-scan violation report.
//
// Only called for scans that actually found violations; a clean scan makes
// no noise.
func (c *Client) SendScanReportEmail(to string, scan *domain.ScanRun) error {
	data := map[string]string{
		"ScanID":         scan.ID.String(),
		"ModulePath":     scan.ModulePath,
		"Root":           scan.Root,
		"Packages":       strconv.Itoa(scan.Packages),
		"Edges":          strconv.Itoa(scan.Edges),
		"ViolationCount": strconv.Itoa(scan.ViolationCount),
	}

	return c.SendEmail(
		to,
		"Architecture scan report: "+scan.ModulePath,
		TemplateScanReport,
		data,
	)
}
