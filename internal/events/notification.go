// Package events implements the notification envelope and the Event
// Pipeline that republishes parambus events to uplink destinations.
//
// The notification envelope is a flat struct with a discriminated
// payload, a generated identity, and a timestamp, narrowed to the seven
// wire-visible notification types rather than an open-ended message
// type string.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is one of the seven notification type codes on the wire.
type Type int

const (
	TypeParamChange       Type = 1
	TypeFactoryReset      Type = 2
	TypeFirmwareUpgrade   Type = 3
	TypeConnectedClient   Type = 4
	TypeTransactionStatus Type = 5
	TypeDeviceStatus      Type = 6
	TypeComponentStatus   Type = 7
)

// Notification is the envelope forwarded to the uplink for asynchronous
// events.
type Notification struct {
	Type        Type            `json:"type"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	TimestampMs int64           `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// ParamChangeData is the payload for TypeParamChange.
type ParamChangeData struct {
	ParamName string `json:"paramName"`
	OldValue  string `json:"oldValue"`
	NewValue  string `json:"newValue"`
	DataType  int    `json:"dataType"`
	WriteID   string `json:"writeID"`
}

// ConnectedClientData is the payload for TypeConnectedClient.
type ConnectedClientData struct {
	Status string `json:"status"` // "Online" | "Offline"
	MAC    string `json:"mac"`
}

// TransactionStatusData is the payload for TypeTransactionStatus.
type TransactionStatusData struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	RolledBack    bool   `json:"rolledBack"`
}

// DeviceStatusData is the payload for TypeDeviceStatus and
// TypeComponentStatus.
type DeviceStatusData struct {
	Status string            `json:"status"`
	Detail map[string]string `json:"detail,omitempty"`
}

func newNotification(typ Type, source, destination string, data interface{}, now func() time.Time) (*Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Notification{
		Type:        typ,
		Source:      source,
		Destination: destination,
		TimestampMs: now().UnixMilli(),
		Data:        raw,
	}, nil
}

// NewParamChange constructs a TypeParamChange notification. writeID
// falls back to a freshly generated UUID when the event metadata
// carried none.
func NewParamChange(source, destination, paramName, oldValue, newValue string, dataType int, writeID string) (*Notification, error) {
	if writeID == "" {
		writeID = uuid.New().String()
	}
	return newNotification(TypeParamChange, source, destination, ParamChangeData{
		ParamName: paramName,
		OldValue:  oldValue,
		NewValue:  newValue,
		DataType:  dataType,
		WriteID:   writeID,
	}, time.Now)
}

// NewConnectedClient constructs a TypeConnectedClient notification.
func NewConnectedClient(source, destination, status, mac string) (*Notification, error) {
	return newNotification(TypeConnectedClient, source, destination, ConnectedClientData{
		Status: status,
		MAC:    mac,
	}, time.Now)
}

// NewTransactionStatus constructs a TypeTransactionStatus notification.
func NewTransactionStatus(source, destination, transactionID, status string, rolledBack bool) (*Notification, error) {
	return newNotification(TypeTransactionStatus, source, destination, TransactionStatusData{
		TransactionID: transactionID,
		Status:        status,
		RolledBack:    rolledBack,
	}, time.Now)
}

// ToJSON serializes the notification envelope.
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
