package models

import "time"

// DefaultDeviceInfo is used when a client registers without a device label.
const DefaultDeviceInfo = "Unknown Device"

// ActiveSession is one logged-in device for a user. Rows are immutable
// after insert; the only mutation is deletion on logout.
type ActiveSession struct {
	ID         int64     `json:"-" db:"id"`
	UserID     string    `json:"-" db:"user_id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	DeviceInfo string    `json:"device_info" db:"device_info"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	LoggedInAt time.Time `json:"logged_in_at" db:"logged_in_at"`
}
