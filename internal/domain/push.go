// Package domain contains the core data types shared across layers.
package domain

import "time"

// PushSubscription is a client's Web Push subscription, keyed by user.
type PushSubscription struct {
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	KeyP256DH string    `json:"p256dh"`
	KeyAuth   string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a queued push notification awaiting client retrieval.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
