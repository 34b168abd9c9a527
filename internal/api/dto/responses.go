package dto

import (
	"time"

	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// NewHealthResponse creates a healthy response with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
	}
}

// ProgramsResponse lists programs.
type ProgramsResponse struct {
	Programs []*storage.Program `json:"programs"`
	Count    int                `json:"count"`
}

// SessionsResponse lists import sessions.
type SessionsResponse struct {
	Sessions []*storage.ImportSession `json:"sessions"`
	Count    int                      `json:"count"`
}

// TransactionsResponse lists transactions.
type TransactionsResponse struct {
	Transactions []*storage.ImportTransaction `json:"transactions"`
	Count        int                          `json:"count"`
}

// LedgerEntriesResponse lists ledger entries.
type LedgerEntriesResponse struct {
	Entries []*storage.LedgerEntry `json:"entries"`
	Count   int                    `json:"count"`
}

// TransactionWithMatches pairs a transaction with its candidates for
// the review screen.
type TransactionWithMatches struct {
	Transaction *storage.ImportTransaction `json:"transaction"`
	Matches     []*storage.PotentialMatch  `json:"matches"`
}
