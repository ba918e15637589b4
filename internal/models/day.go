package models

import "time"

// LocalZone is the fixed UTC+8 offset used for quiet hours and day partitioning.
var LocalZone = time.FixedZone("UTC+8", 8*60*60)

// DayKey returns the YYYYMMDD partition key of t in LocalZone.
func DayKey(t time.Time) string {
	return t.In(LocalZone).Format("20060102")
}

// ValidDayKey reports whether key is a well-formed YYYYMMDD value.
func ValidDayKey(key string) bool {
	_, err := time.ParseInLocation("20060102", key, LocalZone)
	return err == nil
}
