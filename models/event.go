package models

import (
	"github.com/octanolabs/go-stakegate/events"
)

type Event struct {
	ID        string            `bson:"id" json:"id"`
	Type      string            `bson:"type" json:"type"`
	Account   string            `bson:"account" json:"account"`
	Amount    string            `bson:"amount,omitempty" json:"amount,omitempty"`
	Data      map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	Timestamp int64             `bson:"timestamp" json:"timestamp"`
}

func NewEvent(ev events.Event) *Event {
	e := &Event{
		ID:        ev.ID.String(),
		Type:      string(ev.Type),
		Account:   ev.Account.Hex(),
		Data:      ev.Data,
		Timestamp: ev.Time.Unix(),
	}
	if ev.Amount != nil {
		e.Amount = ev.Amount.String()
	}
	return e
}
