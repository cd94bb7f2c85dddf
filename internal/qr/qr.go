package qr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// Generator produces unique QR code values for tickets and renders them as
// PNG images. The value is what gets persisted and scanned; the image is
// only handed to the buyer.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret))
	return &Generator{secret: hashed[:]}
}

// NewValue returns a fresh QR code value. Uniqueness is backed by the
// random UUID; the HMAC suffix ties the value to this deployment so codes
// from another installation never validate here.
func (g *Generator) NewValue() string {
	id := uuid.New().String()
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(id))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:9])
	return fmt.Sprintf("QR-%s-%s", id, sig)
}

// RenderPNG encodes a QR value as a 256x256 PNG.
func (g *Generator) RenderPNG(value string) ([]byte, error) {
	return qrcode.Encode(value, qrcode.Medium, 256)
}
