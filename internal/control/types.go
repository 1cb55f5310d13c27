package control

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("switch not found")

// HaltSwitch stops a running batch before its next account while it is on.
const HaltSwitch = "batch.halt"

type Switch struct {
	Key       string    `json:"key"`
	On        bool      `json:"on"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
