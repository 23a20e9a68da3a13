package alerting

import (
	"errors"
	"fmt"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

// LowStockSMS is the text of a critical low-stock SMS.
func LowStockSMS(name string, quantity int) string {
	return fmt.Sprintf("StockSync Alert: %s is low on stock (%d remaining). Restock soon!", name, quantity)
}

// ExpirySMS is the text of an urgent expiry SMS.
func ExpirySMS(name string, daysLeft int) string {
	return fmt.Sprintf("StockSync Alert: %s expires in %d days. Take action!", name, daysLeft)
}

// SMSText renders the message of a single-product SMS notification.
func SMSText(n model.PendingNotification) (string, error) {
	if len(n.Products) != 1 {
		return "", errors.New("sms notification must carry exactly one product")
	}
	p := n.Products[0]
	switch n.Kind {
	case model.KindLowStock:
		return LowStockSMS(p.ProductName, p.Quantity), nil
	case model.KindExpiringSoon:
		return ExpirySMS(p.ProductName, n.DaysLeft), nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", n.Kind)
	}
}
