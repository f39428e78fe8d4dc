package fanout

import (
	"strconv"
	"strings"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// Format renders the alert message; tag identifies the recipient copy
func Format(a *common.AlertCreated, tag string) string {
	title := a.MarketTitle
	if title == "" {
		title = "Unknown"
	}
	wallet := a.WalletName
	if wallet == "" {
		wallet = utils.ShortWallet(a.Wallet)
	}

	var sb strings.Builder
	sb.WriteString("🐋 Whale Trade Detected\n\n")
	sb.WriteString("Market:\n" + title + "\n\n")
	if a.AlertType != "" {
		sb.WriteString("Type:\n" + string(a.AlertType) + "\n\n")
	}
	sb.WriteString("Side:\n" + strings.ToUpper(string(a.Side)) + "\n\n")
	sb.WriteString("Size:\n$" + utils.FormatUSD(a.Size) + "\n\n")
	sb.WriteString("Price:\n" + utils.FormatPrice(a.Price) + "\n\n")
	sb.WriteString("Whale Score:\n" + strconv.Itoa(a.WhaleScore) + "\n\n")
	sb.WriteString("Wallet:\n" + wallet + "\n\n")
	sb.WriteString("#" + tag)
	return sb.String()
}
