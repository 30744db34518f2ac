package domain

import "time"

// TimeLayout is the storage format for all timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Now returns the current UTC time in storage format.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}
