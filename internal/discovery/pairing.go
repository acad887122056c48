package discovery

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PairingPayload is what a companion app scans to pair with a gateway.
type PairingPayload struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewPairingPayload builds the payload for e.
func NewPairingPayload(e Endpoint) PairingPayload {
	return PairingPayload{
		ID:          StableID(e),
		Label:       PrettyLabel(e),
		Host:        e.Host,
		Port:        e.Port,
		Fingerprint: AddressFingerprint(e),
	}
}

// Encode returns the compact JSON form embedded in the QR code.
func (p PairingPayload) Encode() (string, error) {
	if p.Host == "" || p.Port <= 0 {
		return "", fmt.Errorf("pairing %s: endpoint has no resolved address", p.ID)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pairing payload: %w", err)
	}
	return string(b), nil
}

// RenderPairingQR renders p as a QR code drawn with half-block
// characters, suitable for printing to a terminal.
func RenderPairingQR(p PairingPayload) (string, error) {
	content, err := p.Encode()
	if err != nil {
		return "", err
	}
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("render pairing qr: %w", err)
	}
	return code.ToSmallString(false), nil
}
