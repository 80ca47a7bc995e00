// Package parser extracts booking intent from free-form client messages.
//
// Extraction output is advisory only. Every field the parser returns is
// re-validated by the conversation flow against the procedure list, the
// date normalizer and the live slot grid before it influences a booking.
package parser

import "context"

// Extraction holds whatever booking details a message mentioned.
// Empty fields mean "not mentioned". The zero value means "nothing
// recognized" and is a valid, safe result.
type Extraction struct {
	Procedure   string `json:"procedure"`
	Date        string `json:"date"`
	TimeOrRange string `json:"time_or_range"`
}

// Parser turns a raw client message into a best-effort Extraction.
type Parser interface {
	Parse(ctx context.Context, text string) Extraction
}

// StubParser recognizes nothing. It stands in when no LLM is configured;
// the conversation flow then relies on its own keyword matching.
type StubParser struct{}

func (StubParser) Parse(context.Context, string) Extraction { return Extraction{} }

var _ Parser = StubParser{}
