package application

import "time"

// SyncStats counts what one syncRange call did.
type SyncStats struct {
	TotalProcessed      int `json:"totalProcessed"`
	Inserted            int `json:"inserted"`
	Updated             int `json:"updated"`
	Unchanged           int `json:"unchanged"`
	Errors              int `json:"errors"`
	IndirectConversions int `json:"indirectConversions"`
}

type DeriveStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

type AggregateStats struct {
	PeriodsProcessed       int `json:"periodsProcessed"`
	CurrencyPairsProcessed int `json:"currencyPairsProcessed"`
	RecordsCreated         int `json:"recordsCreated"`
	RecordsUpdated         int `json:"recordsUpdated"`
}

func (a *AggregateStats) add(o AggregateStats) {
	a.PeriodsProcessed += o.PeriodsProcessed
	a.CurrencyPairsProcessed += o.CurrencyPairsProcessed
	a.RecordsCreated += o.RecordsCreated
	a.RecordsUpdated += o.RecordsUpdated
}

type SyncResult struct {
	RunID   string
	Stats   SyncStats
	Monthly AggregateStats
}

type SuccessReport struct {
	RunID    string
	Stats    SyncStats
	Monthly  AggregateStats
	Attempts int
	Elapsed  time.Duration
}

type FailureReport struct {
	RunID    string
	Err      error
	Context  string
	Attempts int
	Elapsed  time.Duration
}
