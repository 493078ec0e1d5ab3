package aiclient

import (
	"context"
)

// VendorFacts is the slice of an offering the pricing model needs.
type VendorFacts struct {
	OfferingID   string `json:"offering_id"`
	CompanyName  string `json:"company_name"`
	PricingNotes string `json:"pricing_notes"`
	LeadTimeDays int    `json:"lead_time_days"`
}

// VendorQuoteRequest prices one offering against one project.
type VendorQuoteRequest struct {
	Segment     string      `json:"segment"`
	SegmentName string      `json:"segment_name"`
	ProjectSqft float64     `json:"project_sqft"`
	City        string      `json:"city,omitempty"`
	Region      string      `json:"region"`
	Country     string      `json:"country"`
	Vendor      VendorFacts `json:"vendor"`
}

// VendorQuoteResult is the priced outcome for a single offering.
type VendorQuoteResult struct {
	RatePerUnit float64 `json:"rate_per_unit"`
	Total       float64 `json:"total"`
	Notes       string  `json:"notes,omitempty"`
}

// GenerateVendorQuote asks the backend to parse one vendor's pricing rules
// and price the project. Callers fan out per offering and own retry policy.
func (c *Client) GenerateVendorQuote(ctx context.Context, req VendorQuoteRequest) (*VendorQuoteResult, error) {
	var out VendorQuoteResult
	if err := c.do(ctx, "POST", "/api/generate_quote", nil, req, &out, c.quoteTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// SummaryMessage is one turn of the conversation being summarized.
type SummaryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type summarizeChatRequest struct {
	Messages        []SummaryMessage `json:"messages"`
	ExistingSummary string           `json:"existing_summary,omitempty"`
	ProjectName     string           `json:"project_name,omitempty"`
}

// ChatSummary is a condensed conversation produced by the backend.
type ChatSummary struct {
	Summary           string `json:"summary"`
	WordCount         int    `json:"word_count"`
	EntitiesPreserved int    `json:"entities_preserved"`
}

// SummarizeChat folds a conversation (and any previous summary) into a fresh
// rolling summary.
func (c *Client) SummarizeChat(ctx context.Context, messages []SummaryMessage, existingSummary, projectName string) (*ChatSummary, error) {
	req := summarizeChatRequest{
		Messages:        messages,
		ExistingSummary: existingSummary,
		ProjectName:     projectName,
	}
	var out ChatSummary
	if err := c.do(ctx, "POST", "/api/summarize_chat", nil, req, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}
