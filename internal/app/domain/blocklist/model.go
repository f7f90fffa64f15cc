package blocklist

import "time"

// Entry denies all API access from an IP address.
type Entry struct {
	ID        int64     `json:"id" db:"id"`
	IP        string    `json:"ip_addr" db:"ip_addr"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
