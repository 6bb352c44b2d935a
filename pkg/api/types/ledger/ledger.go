package ledger

import "strings"

// Transaction is a raw ledger row for the forensic view.
type Transaction struct {
	TransactionId string  `json:"transaction_id"`
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Amount        float64 `json:"amount"`
	Timestamp     string  `json:"timestamp"`
	Type          string  `json:"type"`
}

// Search returns transactions whose source, target or id contains term,
// case-insensitively. Empty term matches everything.
func Search(txs []Transaction, term string) []Transaction {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return txs
	}
	ret := []Transaction{}
	for _, tx := range txs {
		if strings.Contains(strings.ToLower(tx.Source), term) ||
			strings.Contains(strings.ToLower(tx.Target), term) ||
			strings.Contains(strings.ToLower(tx.TransactionId), term) {
			ret = append(ret, tx)
		}
	}
	return ret
}
