package imaging

const bytesPerMB = 1024 * 1024

// EstimateSizeMB returns the decoded size, in MB, of a base64 payload
// (or a data URI carrying one) from its textual length.
func EstimateSizeMB(encoded string) float64 {
	sizeInBytes := float64(len(encoded)) * 3 / 4
	return sizeInBytes / bytesPerMB
}

// NeedsCompression reports whether encoded is larger than thresholdMB.
func NeedsCompression(encoded string, thresholdMB float64) bool {
	return EstimateSizeMB(encoded) > thresholdMB
}
