package statusweb

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PrintQRCode renders a terminal QR code encoding url, so a phone on the
// same network can scan in and open the status page, mirroring the
// teacher's internal/cli/web.go printWebQRCode helper.
func PrintQRCode(url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("statusweb: encoding QR code: %w", err)
	}
	fmt.Println(code.ToString(false))
	return nil
}
