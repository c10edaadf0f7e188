package marketplace

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

type Snapshot struct {
	LastID   uint64          `json:"last_id"`
	Listings []ListingRecord `json:"listings"`
}

// ListingRecord is the stored form of a Listing with the price as a
// decimal string.
type ListingRecord struct {
	ID                uint64          `json:"id"`
	Owner             account.Account `json:"owner"`
	OriginalCreator   account.Account `json:"original_creator"`
	ContentRef        string          `json:"content_ref"`
	Price             string          `json:"price"`
	ForSale           bool            `json:"for_sale"`
	Verified          bool            `json:"verified"`
	RoyaltyPercentage uint8           `json:"royalty_percentage"`
	TotalSales        uint64          `json:"total_sales"`
	ListedAt          time.Time       `json:"listed_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{LastID: s.lastID}
	for _, l := range s.ListModels() {
		snap.Listings = append(snap.Listings, ListingRecord{
			ID:                l.ID,
			Owner:             l.Owner,
			OriginalCreator:   l.OriginalCreator,
			ContentRef:        l.ContentRef,
			Price:             l.Price.Dec(),
			ForSale:           l.ForSale,
			Verified:          l.Verified,
			RoyaltyPercentage: l.RoyaltyPercentage,
			TotalSales:        l.TotalSales,
			ListedAt:          l.ListedAt,
			UpdatedAt:         l.UpdatedAt,
		})
	}
	return snap
}

// Restore replaces the service's listings with snap.
func (s *Service) Restore(snap Snapshot) error {
	listings := make(map[uint64]*Listing, len(snap.Listings))
	for _, r := range snap.Listings {
		if r.ID == 0 || r.ID > snap.LastID {
			return fmt.Errorf("listing id %d outside 1-%d", r.ID, snap.LastID)
		}
		if _, dup := listings[r.ID]; dup {
			return fmt.Errorf("duplicate listing %d", r.ID)
		}
		if r.RoyaltyPercentage > MaxRoyaltyPercentage {
			return fmt.Errorf("listing %d: royalty %d", r.ID, r.RoyaltyPercentage)
		}
		price, err := uint256.FromDecimal(r.Price)
		if err != nil {
			return fmt.Errorf("listing %d price: %w", r.ID, err)
		}
		listings[r.ID] = &Listing{
			ID:                r.ID,
			Owner:             r.Owner,
			OriginalCreator:   r.OriginalCreator,
			ContentRef:        r.ContentRef,
			Price:             *price,
			ForSale:           r.ForSale,
			Verified:          r.Verified,
			RoyaltyPercentage: r.RoyaltyPercentage,
			TotalSales:        r.TotalSales,
			ListedAt:          r.ListedAt,
			UpdatedAt:         r.UpdatedAt,
		}
	}
	s.listings = listings
	s.lastID = snap.LastID
	return nil
}
