package types

import "fmt"

// Well-known progress ids. Producers use one stable id per operation kind.
const (
	OpArchiveExtraction = "archiveExtraction"
	OpCloudSync         = "cloudKitSync"
	OpLibraryScan       = "romScanning"
	OpFileRecovery      = "fileRecovery"
	OpWebServerUpload   = "webServerUpload"
	OpDownload          = "download"
	OpTempCleanup       = "tempCleanup"
	OpCacheManagement   = "cacheMgmt"
	OpRecoveryScan      = "recoveryScan"
)

var operationLabels = map[string]string{
	OpArchiveExtraction: "Extracting archive",
	OpCloudSync:         "Syncing with cloud",
	OpLibraryScan:       "Scanning library",
	OpFileRecovery:      "Recovering files",
	OpWebServerUpload:   "Receiving upload",
	OpDownload:          "Downloading",
	OpTempCleanup:       "Cleaning temporary files",
	OpCacheManagement:   "Managing cache",
	OpRecoveryScan:      "Checking for stuck files",
}

// OperationLabel returns the human readable name of an operation id, falling
// back to the id itself.
func OperationLabel(id string) string {
	if label, ok := operationLabels[id]; ok {
		return label
	}
	return id
}

// ProgressInfo is one tracked operation's progress. Total == 0 means the
// operation is indeterminate.
type ProgressInfo struct {
	ID      string `json:"id"`
	Current int64  `json:"current"`
	Total   int64  `json:"total"`
	Detail  string `json:"detail,omitempty"`
}

// Indeterminate reports whether the total is unknown
func (p ProgressInfo) Indeterminate() bool {
	return p.Total == 0
}

// Fraction returns current/total clamped to [0,1], or 0 for indeterminate progress.
func (p ProgressInfo) Fraction() float64 {
	if p.Total <= 0 || p.Current <= 0 {
		return 0
	}
	if p.Current >= p.Total {
		return 1
	}
	return float64(p.Current) / float64(p.Total)
}

// Validate checks that current stays within 0..total
func (p ProgressInfo) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("progress id is required")
	case p.Current < 0 || p.Total < 0:
		return fmt.Errorf("progress %s has negative counters: %d/%d", p.ID, p.Current, p.Total)
	case p.Total > 0 && p.Current > p.Total:
		return fmt.Errorf("progress %s current %d exceeds total %d", p.ID, p.Current, p.Total)
	}
	return nil
}

// Normalized returns a copy that satisfies Validate where possible
func (p ProgressInfo) Normalized() ProgressInfo {
	if p.Current < 0 {
		p.Current = 0
	}
	if p.Total < 0 {
		p.Total = 0
	}
	if p.Total > 0 && p.Current > p.Total {
		p.Current = p.Total
	}
	return p
}
