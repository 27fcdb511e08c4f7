package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type FulfillmentKind string

const (
	FulfillmentFile   FulfillmentKind = "file"
	FulfillmentSerial FulfillmentKind = "serial"
	FulfillmentRole   FulfillmentKind = "role"
)

// Fulfillment is what was actually handed to the buyer. It is a closed set:
// FileLink, SerialAssignment and RoleGrantRecord are the only implementations.
type Fulfillment interface {
	Kind() FulfillmentKind
	// Describe renders the payload for a buyer-facing notice.
	Describe() string
	sealed()
}

type FileLink struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type SerialAssignment struct {
	Serial string `json:"serial"`
}

type RoleGrantRecord struct {
	GuildID   string     `json:"guild_id"`
	RoleID    string     `json:"role_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (FileLink) Kind() FulfillmentKind         { return FulfillmentFile }
func (SerialAssignment) Kind() FulfillmentKind { return FulfillmentSerial }
func (RoleGrantRecord) Kind() FulfillmentKind  { return FulfillmentRole }

func (FileLink) sealed()         {}
func (SerialAssignment) sealed() {}
func (RoleGrantRecord) sealed()  {}

func (f FileLink) Describe() string {
	if f.Name != "" {
		return fmt.Sprintf("Download %s: %s", f.Name, f.URL)
	}
	return "Download: " + f.URL
}

func (s SerialAssignment) Describe() string { return "Your key: " + s.Serial }

func (r RoleGrantRecord) Describe() string {
	if r.ExpiresAt != nil {
		return fmt.Sprintf("You were granted the role <@&%s> until %s.", r.RoleID, r.ExpiresAt.UTC().Format(time.RFC1123))
	}
	return fmt.Sprintf("You were granted the role <@&%s>.", r.RoleID)
}

type NoticeChannel string

const (
	ChannelDirectMessage NoticeChannel = "dm"
	ChannelEmail         NoticeChannel = "email"
)

// DeliveryData records what was handed out and how the buyer was told.
// Partial is set when the resource was consumed but no channel reached the buyer.
// Blocked is set when fulfillment cannot succeed until an operator fixes the product;
// such orders wait for a manual re-delivery.
type DeliveryData struct {
	Fulfillment Fulfillment
	Channels    []NoticeChannel
	FulfilledAt time.Time
	Partial     bool
	Blocked     bool
	LastError   string
}

type deliveryDataJSON struct {
	Kind        FulfillmentKind `json:"kind,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Channels    []NoticeChannel `json:"channels,omitempty"`
	FulfilledAt time.Time       `json:"fulfilled_at"`
	Partial     bool            `json:"partial,omitempty"`
	Blocked     bool            `json:"blocked,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

func (d DeliveryData) MarshalJSON() ([]byte, error) {
	out := deliveryDataJSON{
		Channels:    d.Channels,
		FulfilledAt: d.FulfilledAt,
		Partial:     d.Partial,
		Blocked:     d.Blocked,
		LastError:   d.LastError,
	}
	if d.Fulfillment != nil {
		raw, err := json.Marshal(d.Fulfillment)
		if err != nil {
			return nil, err
		}
		out.Kind = d.Fulfillment.Kind()
		out.Payload = raw
	}
	return json.Marshal(out)
}

func (d *DeliveryData) UnmarshalJSON(b []byte) error {
	var in deliveryDataJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.Channels = in.Channels
	d.FulfilledAt = in.FulfilledAt
	d.Partial = in.Partial
	d.Blocked = in.Blocked
	d.LastError = in.LastError
	d.Fulfillment = nil

	switch in.Kind {
	case "":
		return nil
	case FulfillmentFile:
		var f FileLink
		if err := json.Unmarshal(in.Payload, &f); err != nil {
			return err
		}
		d.Fulfillment = f
	case FulfillmentSerial:
		var s SerialAssignment
		if err := json.Unmarshal(in.Payload, &s); err != nil {
			return err
		}
		d.Fulfillment = s
	case FulfillmentRole:
		var r RoleGrantRecord
		if err := json.Unmarshal(in.Payload, &r); err != nil {
			return err
		}
		d.Fulfillment = r
	default:
		return fmt.Errorf("unknown fulfillment kind %q", in.Kind)
	}
	return nil
}

// HasChannel reports whether the buyer was reached through c.
func (d *DeliveryData) HasChannel(c NoticeChannel) bool {
	for _, ch := range d.Channels {
		if ch == c {
			return true
		}
	}
	return false
}
