package models

import (
	"encoding/json"
	"time"
)

// Event Bus models
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // Minted, Transferred, ModelSold, JobCompleted, ...
	Source    string          `json:"source"`
	Sequence  uint64          `json:"sequence"`
	Operation string          `json:"operation"`
	Caller    string          `json:"caller"`
	Accounts  []string        `json:"accounts"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Activity feed entry derived from a bus event
type ActivityEntry struct {
	EventID   string          `json:"event_id"`
	Sequence  uint64          `json:"sequence"`
	Type      string          `json:"type"`
	Caller    string          `json:"caller"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Token
type TokenInfo struct {
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Decimals           int    `json:"decimals"`
	TotalSupply        Amount `json:"total_supply"`
	Holders            int    `json:"holders"`
	MarketplaceAccount string `json:"marketplace_account"`
	TrainingAccount    string `json:"training_account"`
}

// Amount is rendered both in smallest units and in whole tokens.
type Amount struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance Amount `json:"balance"`
}

type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance Amount `json:"allowance"`
	Unlimited bool   `json:"unlimited"`
}

type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveRequest struct {
	Spender   string `json:"spender"`
	Amount    string `json:"amount,omitempty"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

type TransferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Roles
type RoleRequest struct {
	Account string `json:"account"`
}

type RoleMembers struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

// Marketplace
type ListModelRequest struct {
	ContentRef        string `json:"content_ref"`
	Price             string `json:"price"`
	RoyaltyPercentage int    `json:"royalty_percentage"`
}

type UpdateListingRequest struct {
	Price   string `json:"price"`
	ForSale bool   `json:"for_sale"`
}

type VerifyModelRequest struct {
	Verified bool `json:"verified"`
}

type ModelListing struct {
	ID                uint64    `json:"id"`
	Owner             string    `json:"owner"`
	OriginalCreator   string    `json:"original_creator"`
	ContentRef        string    `json:"content_ref"`
	Price             Amount    `json:"price"`
	IsForSale         bool      `json:"is_for_sale"`
	IsVerified        bool      `json:"is_verified"`
	RoyaltyPercentage int       `json:"royalty_percentage"`
	TotalSales        uint64    `json:"total_sales"`
	ListedAt          time.Time `json:"listed_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Training
type CreateTrainingJobRequest struct {
	ModelRef               string `json:"model_ref"`
	DatasetRef             string `json:"dataset_ref"`
	Reward                 string `json:"reward"`
	RequiredComputingPower uint64 `json:"required_computing_power"`
	DurationSeconds        uint64 `json:"duration_seconds"`
}

type SubmitResultRequest struct {
	ResultRef string `json:"result_ref"`
	Score     int    `json:"score"`
}

type PayoutEntry struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

// CompleteJobRequest with an empty Payouts list asks the service to
// split the reward in proportion to participant scores.
type CompleteJobRequest struct {
	Payouts []PayoutEntry `json:"payouts,omitempty"`
}

type Submission struct {
	Participant string    `json:"participant"`
	ResultRef   string    `json:"result_ref"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Payout struct {
	Participant string `json:"participant"`
	Amount      Amount `json:"amount"`
}

type TrainingJob struct {
	ID                     uint64       `json:"id"`
	Creator                string       `json:"creator"`
	ModelRef               string       `json:"model_ref"`
	DatasetRef             string       `json:"dataset_ref"`
	Reward                 Amount       `json:"reward"`
	RequiredComputingPower uint64       `json:"required_computing_power"`
	DurationSeconds        uint64       `json:"duration_seconds"`
	Status                 string       `json:"status"`
	CreatedAt              time.Time    `json:"created_at"`
	Deadline               time.Time    `json:"deadline"`
	ClosedAt               *time.Time   `json:"closed_at,omitempty"`
	ParticipantCount       uint64       `json:"participant_count"`
	Submissions            []Submission `json:"submissions"`
	Payouts                []Payout     `json:"payouts,omitempty"`
}

// Operation result returned by mutating endpoints
type Receipt struct {
	ID     *uint64      `json:"id,omitempty"`
	Events []EventBrief `json:"events"`
}

type EventBrief struct {
	Sequence uint64          `json:"sequence"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
