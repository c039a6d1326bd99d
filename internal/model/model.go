// Package model holds the domain rows shared by the store and the sync checkers.
package model

import "time"

// Number is a row in the numbers table: a masked phone number owned by
// the product, plus its intended Twilio messaging-service enrollment.
type Number struct {
	ID             string    `json:"id"`
	Number         string    `json:"number"` // E.164
	CountryCode    string    `json:"country_code"`
	Enabled        bool      `json:"enabled"`
	TextsForwarded int       `json:"texts_forwarded"`
	TextsBlocked   int       `json:"texts_blocked"`
	CallsForwarded int       `json:"calls_forwarded"`
	CallsBlocked   int       `json:"calls_blocked"`
	ServiceSID     string    `json:"service_sid,omitempty"` // intended messaging service, "" = none expected
	CreatedAt      time.Time `json:"created_at"`
}

// Used reports whether the number has forwarded or blocked any traffic.
func (n Number) Used() bool {
	return n.UsedTexts() || n.UsedCalls()
}

// UsedTexts reports whether any text traffic was seen.
func (n Number) UsedTexts() bool {
	return n.TextsForwarded > 0 || n.TextsBlocked > 0
}

// UsedCalls reports whether any call traffic was seen.
func (n Number) UsedCalls() bool {
	return n.CallsForwarded > 0 || n.CallsBlocked > 0
}

// Service is a row in the messaging_services table: the intended state
// of a Twilio Messaging Service.
type Service struct {
	SID          string    `json:"sid"`
	FriendlyName string    `json:"friendly_name"`
	UseCase      string    `json:"use_case"`
	CreatedAt    time.Time `json:"created_at"`
}

// CheckRun is a recorded outcome of one sync-check task invocation.
type CheckRun struct {
	ID        string                    `json:"id"`
	Task      string                    `json:"task"`
	Issues    int                       `json:"issues"`
	Cleaned   int                       `json:"cleaned"`
	Counts    map[string]map[string]int `json:"counts"`
	Report    string                    `json:"report"`
	CreatedAt time.Time                 `json:"created_at"`
}
