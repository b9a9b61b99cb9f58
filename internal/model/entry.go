package model

import (
	"encoding/json"
	"time"
)

type Status string

const (
	Pending Status = "pending"
	Sent    Status = "sent"
	Failed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Sent, Failed:
		return true
	}
	return false
}

// Entry is one recipient/shipment row in the blast queue.
type Entry struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	RecipientName string    `json:"recipientName"`
	ItemName      string    `json:"itemName"`
	ReceiptNumber string    `json:"receiptNumber"`
	COD           string    `json:"cod"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Template struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Text string `json:"text" yaml:"text"`
}

type Settings struct {
	Delay        time.Duration
	AutoCloseTab bool
	SenderName   string
}

// settingsJSON keeps the delay in milliseconds on the wire and in storage.
type settingsJSON struct {
	DelayMS      int64  `json:"delay"`
	AutoCloseTab bool   `json:"autoCloseTab"`
	SenderName   string `json:"senderName"`
}

func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(settingsJSON{
		DelayMS:      s.Delay.Milliseconds(),
		AutoCloseTab: s.AutoCloseTab,
		SenderName:   s.SenderName,
	})
}

func (s *Settings) UnmarshalJSON(b []byte) error {
	var raw settingsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Delay = time.Duration(raw.DelayMS) * time.Millisecond
	s.AutoCloseTab = raw.AutoCloseTab
	s.SenderName = raw.SenderName
	return nil
}

const DefaultSenderName = "Admin JNT"

func DefaultSettings() Settings {
	return Settings{
		Delay:      2 * time.Second,
		SenderName: DefaultSenderName,
	}
}
