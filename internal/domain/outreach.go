package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxOutreachBriefChars bounds the brief excerpt stored in an outreach chunk.
const MaxOutreachBriefChars = 800

// CategoryPastOutreach is the metadata category of outreach chunks.
const CategoryPastOutreach = "past_outreach"

// OutreachRecord summarizes one completed research run.
type OutreachRecord struct {
	Company      string
	Industry     string
	DealCategory string
	Brief        string
	Query        string
	EmailSent    bool
	Timestamp    time.Time
	// Origin identifies an imported record, e.g. "outreach_20250301.json#2".
	Origin string
}

// NewOutreachRecord creates a new OutreachRecord
func NewOutreachRecord(company, industry, dealCategory, brief string, timestamp time.Time) *OutreachRecord {
	return &OutreachRecord{
		Company:      company,
		Industry:     industry,
		DealCategory: dealCategory,
		Brief:        brief,
		Timestamp:    timestamp,
	}
}

// ValidateOutreachRecord validates an OutreachRecord instance
func ValidateOutreachRecord(r *OutreachRecord) error {
	if r == nil {
		return fmt.Errorf("outreach record cannot be nil")
	}
	if strings.TrimSpace(r.Company) == "" {
		return fmt.Errorf("%w: company", ErrMissingRequiredField)
	}
	return nil
}

// Text renders the record as the indexable chunk text.
func (r *OutreachRecord) Text() string {
	sent := "No"
	if r.EmailSent {
		sent = "Yes"
	}
	return fmt.Sprintf(
		"Past outreach to %s. Industry: %s. Deal category: %s. Email sent: %s. Search query: %s. Research brief: %s",
		orUnknown(r.Company),
		orUnknown(r.Industry),
		orUnknown(r.DealCategory),
		sent,
		orUnknown(r.Query),
		truncateRunes(r.Brief, MaxOutreachBriefChars),
	)
}

// Metadata returns the chunk metadata for the record.
func (r *OutreachRecord) Metadata() map[string]string {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	meta := map[string]string{
		MetaCompany:      orUnknown(r.Company),
		MetaIndustry:     orUnknown(r.Industry),
		MetaDealCategory: orUnknown(r.DealCategory),
		MetaTimestamp:    ts.UTC().Format(time.RFC3339),
		MetaCategory:     CategoryPastOutreach,
	}
	if r.Origin != "" {
		meta[MetaSourceFile] = r.Origin
	}
	return meta
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
