package solana

import "encoding/json"

// LatestBlockhash is the result of getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus is a single entry from getSignatureStatuses.
// Err is the raw transaction error object, nil on success.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	Err                json.RawMessage
	ConfirmationStatus string
}

// Confirmed reports whether the transaction reached at least
// confirmed commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
