package model

import "time"

// WaterReading is one stored water volume observation. Rows always carry both
// units; whichever one the sensor omitted is derived on write (liters = m3 × 1000).
type WaterReading struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	VolumeM3     float64   `json:"volume_m3"`
	VolumeLiters float64   `json:"volume_liters"`
}

// AtmosphericReading is one stored temperature/humidity observation.
type AtmosphericReading struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// User is the authoritative account record. PasswordHash and Email never leave
// the server side.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	DarkMode     bool      `json:"dark_mode"`
	Email        string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the client-held identity for the signed-in user.
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	DarkMode bool   `json:"dark_mode"`
}
