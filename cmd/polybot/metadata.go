package main

import "github.com/web3guy0/polybot/internal/storage"

// marketMetadataLookup satisfies eventproc.MarketMetadataLookup, which
// needs both a condition and a token lookup; Storage splits those across
// two repositories, so wiring needs a thin adapter over both.
type marketMetadataLookup struct {
	markets *storage.MarketRepository
	tokens  *storage.TokenRepository
}

func (l *marketMetadataLookup) GetByCondition(conditionID string) (*storage.Market, error) {
	return l.markets.GetByCondition(conditionID)
}

func (l *marketMetadataLookup) GetByID(tokenID string) (*storage.OutcomeToken, error) {
	return l.tokens.GetByID(tokenID)
}
