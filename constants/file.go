package constants

import (
	"regexp"
	"strings"
)

// AllowedExtensions holds the accepted upload extensions (lowercase, without '.').
var AllowedExtensions = map[string]struct{}{
	"csv": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

const (
	// RunTimestampLayout formats the processing start time used in output file names.
	RunTimestampLayout = "20060102_150405"
	// ProcessedSuffix completes every processed output file name.
	ProcessedSuffix = "_processed_data.csv"
	// DownloadPrefix is prepended to the served file name on download.
	DownloadPrefix = "Fraud_Report_"
	// DefaultChunkSize is the number of rows scored per chunk.
	DefaultChunkSize = 1000
	// MaxUploadBytes bounds the accepted upload size.
	MaxUploadBytes = 100 << 20
	// PreviewRows is how many scored rows the results page shows.
	PreviewRows = 50
)

// ProcessedFilePattern matches processed output names, e.g. 20250329_170951_processed_data.csv.
var ProcessedFilePattern = regexp.MustCompile(`^\d{8}_\d{6}_processed_data\.csv$`)
