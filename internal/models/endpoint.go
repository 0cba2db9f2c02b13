package models

import (
	"net"
	"strconv"
	"time"
)

// Endpoint is the analysis server address entered by the operator.
type Endpoint struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (e Endpoint) IsZero() bool { return e.Host == "" && e.Port == 0 }

// Valid reports whether the endpoint can be dialed.
func (e Endpoint) Valid() bool {
	return e.Host != "" && e.Port > 0 && e.Port <= 65535
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
