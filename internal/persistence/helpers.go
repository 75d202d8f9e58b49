package persistence

import "time"

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}

func intPtr(v int) *int {
	return &v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
