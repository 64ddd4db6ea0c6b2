// Package action builds the JSON requests carried in the requestJson query parameter of
// remote-vehicle-data calls.
package action

import (
	"encoding/json"
	"fmt"
)

// Tag identifies the operation a Request asks the portal to perform.
type Tag string

const (
	TagLockDoors         Tag = "ACTION_EXEC_REMOTE_LOCK_DOORS"
	TagUnlockDoors       Tag = "ACTION_EXEC_REMOTE_UNLOCK_DOORS"
	TagClimateOn         Tag = "ACTION_EXEC_REMOTE_CLIMATE_ON"
	TagClimateOff        Tag = "ACTION_EXEC_REMOTE_CLIMATE_OFF"
	TagTransactionStatus Tag = "ACTION_GET_TRANSACTION_STATUS"
)

var tagNames = map[Tag]string{
	TagLockDoors:         "lock",
	TagUnlockDoors:       "unlock",
	TagClimateOn:         "climate-on",
	TagClimateOff:        "climate-off",
	TagTransactionStatus: "transaction-status",
}

// Name returns a short label for t, used in logs and metrics.
func (t Tag) Name() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return string(t)
}

// Mutating returns true if the portal answers t with a transaction to poll.
func (t Tag) Mutating() bool {
	return t != TagTransactionStatus
}

// Request is the body of a remote-vehicle-data call.
type Request struct {
	Action        Tag            `json:"action"`
	RemoteClimate *RemoteClimate `json:"remoteClimate,omitempty"`
	TransactionID string         `json:"xid,omitempty"`
}

// Encode returns the value of the requestJson query parameter.
func (r *Request) Encode() (string, error) {
	if r.Action == "" {
		return "", fmt.Errorf("request has no action")
	}
	if r.Action == TagTransactionStatus && r.TransactionID == "" {
		return "", fmt.Errorf("transaction status request has no transaction id")
	}
	encoded, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (r *Request) String() string {
	return r.Action.Name()
}

// Lock locks the doors.
func Lock() *Request {
	return &Request{Action: TagLockDoors}
}

// Unlock unlocks the doors.
func Unlock() *Request {
	return &Request{Action: TagUnlockDoors}
}

// StopClimate turns off remote climate control.
func StopClimate() *Request {
	return &Request{Action: TagClimateOff}
}

// TransactionStatus asks whether the transaction xid is still executing.
func TransactionStatus(xid string) *Request {
	return &Request{Action: TagTransactionStatus, TransactionID: xid}
}
