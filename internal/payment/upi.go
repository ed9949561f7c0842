// Package payment builds the UPI deep link a visitor opens to pay the entry
// fee. Payment completion is never observed by the service.
package payment

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const Currency = "INR"

type Payee struct {
	Handle string
	Name   string
}

type Payer struct {
	Name       string
	RollNumber string
	Year       string
	Phone      string
}

type Request struct {
	Link   string `json:"link"`
	Amount int    `json:"amount"`
	Note   string `json:"note"`
	Payee  string `json:"payee"`
}

func Note(p Payer) string {
	return fmt.Sprintf("Entry Fee for %s - %s - %s - %s", p.Name, p.RollNumber, p.Year, p.Phone)
}

// encode escapes like encodeURIComponent so apps that do not decode '+' as
// a space still show the note correctly.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Link returns upi://pay?pa=..&pn=..&am=..&cu=INR&tn=.. for the payer.
func Link(payee Payee, payer Payer, amount int) Request {
	note := Note(payer)
	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(payee.Handle)
	b.WriteString("&pn=")
	b.WriteString(encode(payee.Name))
	b.WriteString("&am=")
	b.WriteString(strconv.Itoa(amount))
	b.WriteString("&cu=")
	b.WriteString(Currency)
	b.WriteString("&tn=")
	b.WriteString(encode(note))
	return Request{Link: b.String(), Amount: amount, Note: note, Payee: payee.Name}
}

// QRCode renders link as a square PNG.
func QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = 300
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}
	return png, nil
}
