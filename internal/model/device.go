package model

// TsdDevice is the server-side record of this terminal
type TsdDevice struct {
	ID              int64   `json:"id"`
	DeviceID        string  `json:"device_id"`
	DeviceName      *string `json:"device_name"`
	DeviceModel     *string `json:"device_model"`
	AndroidVersion  *string `json:"android_version"`
	AppVersion      *string `json:"app_version"`
	Prefix          string  `json:"prefix"`
	IsActive        bool    `json:"is_active"`
	DocumentCounter int     `json:"document_counter"`
	LastSeen        *string `json:"last_seen"`
	CreatedAt       *string `json:"created_at"`
	UpdatedAt       *string `json:"updated_at"`
}

// User is the authenticated operator
type User struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}
