package marketplace

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

const MaxRoyaltyPercentage = 100

// Listing is a model artifact offered on the marketplace. Listings are
// never removed; delisting only clears ForSale.
type Listing struct {
	ID                uint64
	Owner             account.Account
	OriginalCreator   account.Account
	ContentRef        string
	Price             uint256.Int
	ForSale           bool
	Verified          bool
	RoyaltyPercentage uint8
	TotalSales        uint64
	ListedAt          time.Time
	UpdatedAt         time.Time
}

func (l *Listing) clone() Listing {
	return *l
}

type ModelListed struct {
	ID         uint64          `json:"id"`
	Owner      account.Account `json:"owner"`
	Price      *uint256.Int    `json:"price"`
	ContentRef string          `json:"content_ref"`
	Royalty    uint8           `json:"royalty_percentage"`
}

func (ModelListed) EventType() string   { return "ModelListed" }
func (e ModelListed) Parties() []string { return []string{e.Owner.String()} }

type ListingUpdated struct {
	ID      uint64          `json:"id"`
	Owner   account.Account `json:"owner"`
	Price   *uint256.Int    `json:"price"`
	ForSale bool            `json:"for_sale"`
}

func (ListingUpdated) EventType() string   { return "ListingUpdated" }
func (e ListingUpdated) Parties() []string { return []string{e.Owner.String()} }

// ModelSold reports a completed purchase. Royalty is the amount routed to
// the original creator; it is zero when the seller is the creator.
type ModelSold struct {
	ID              uint64          `json:"id"`
	From            account.Account `json:"from"`
	To              account.Account `json:"to"`
	Price           *uint256.Int    `json:"price"`
	Royalty         *uint256.Int    `json:"royalty"`
	OriginalCreator account.Account `json:"original_creator"`
}

func (ModelSold) EventType() string { return "ModelSold" }
func (e ModelSold) Parties() []string {
	parties := []string{e.From.String(), e.To.String()}
	if e.OriginalCreator != e.From {
		parties = append(parties, e.OriginalCreator.String())
	}
	return parties
}

type ModelVerified struct {
	ID       uint64          `json:"id"`
	Verified bool            `json:"verified"`
	Verifier account.Account `json:"verifier"`
	Owner    account.Account `json:"owner"`
}

func (ModelVerified) EventType() string { return "ModelVerified" }
func (e ModelVerified) Parties() []string {
	return []string{e.Owner.String(), e.Verifier.String()}
}
