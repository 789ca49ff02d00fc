package release

// TotalUnknown marks a download whose server did not advertise a content length.
const TotalUnknown int64 = -1

// DownloadProgress is a transient snapshot of a running download.
// BytesRead increases monotonically within one download.
type DownloadProgress struct {
	// BytesRead is the number of payload bytes received so far.
	BytesRead int64
	// TotalBytes is the advertised payload size, or TotalUnknown.
	TotalBytes int64
}

// Percent returns the completed fraction in percent and whether it is known.
// When the total is unknown, percentage reporting is suppressed instead of
// dividing by zero.
func (p DownloadProgress) Percent() (float64, bool) {
	if p.TotalBytes <= 0 {
		return 0, false
	}

	return float64(p.BytesRead) / float64(p.TotalBytes) * 100, true
}
