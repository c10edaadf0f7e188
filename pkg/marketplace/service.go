// Package marketplace lists model artifacts for sale and settles
// purchases, routing a royalty to each model's original creator.
package marketplace

import (
	"sort"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/roles"
)

const ModuleName = "marketplace"

type Service struct {
	ledger *ledger.Ledger
	module *ledger.Module
	roles  *roles.Registry
	emit   events.Emitter
	now    func() time.Time

	listings map[uint64]*Listing
	lastID   uint64
}

func NewService(l *ledger.Ledger, reg *roles.Registry, emit events.Emitter, now func() time.Time) (*Service, error) {
	mod, err := l.Module(ModuleName)
	if err != nil {
		return nil, err
	}
	if emit == nil {
		emit = events.Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		ledger:   l,
		module:   mod,
		roles:    reg,
		emit:     emit,
		now:      now,
		listings: make(map[uint64]*Listing),
	}, nil
}

// Account is the spender buyers must approve before calling BuyModel.
func (s *Service) Account() account.Account { return s.module.Account() }

func (s *Service) ListModel(caller account.Account, contentRef string, price *uint256.Int, royaltyPercentage int) (uint64, error) {
	const op = "listModel"
	if caller.IsZero() || caller.IsModule() {
		return 0, failure.New(failure.ErrUnauthorized, op, "invalid caller %q", caller)
	}
	if price == nil || price.IsZero() {
		return 0, failure.New(failure.ErrInvalidInput, op, "price must be positive")
	}
	if royaltyPercentage < 0 || royaltyPercentage > MaxRoyaltyPercentage {
		return 0, failure.New(failure.ErrInvalidInput, op, "royalty %d outside 0-%d", royaltyPercentage, MaxRoyaltyPercentage)
	}

	now := s.now().UTC()
	s.lastID++
	listing := &Listing{
		ID:                s.lastID,
		Owner:             caller,
		OriginalCreator:   caller,
		ContentRef:        contentRef,
		Price:             *price,
		ForSale:           true,
		RoyaltyPercentage: uint8(royaltyPercentage),
		ListedAt:          now,
		UpdatedAt:         now,
	}
	s.listings[listing.ID] = listing
	s.emit.Emit(ModelListed{
		ID:         listing.ID,
		Owner:      caller,
		Price:      new(uint256.Int).Set(price),
		ContentRef: contentRef,
		Royalty:    listing.RoyaltyPercentage,
	})
	return listing.ID, nil
}

func (s *Service) UpdateListing(caller account.Account, id uint64, newPrice *uint256.Int, forSale bool) error {
	const op = "updateListing"
	listing, err := s.owned(op, caller, id)
	if err != nil {
		return err
	}
	if newPrice == nil || newPrice.IsZero() {
		return failure.New(failure.ErrInvalidInput, op, "price must be positive")
	}
	s.relist(listing, newPrice, forSale)
	return nil
}

// Delist takes a listing off sale and keeps its price.
func (s *Service) Delist(caller account.Account, id uint64) error {
	listing, err := s.owned("delist", caller, id)
	if err != nil {
		return err
	}
	price := listing.Price
	s.relist(listing, &price, false)
	return nil
}

func (s *Service) owned(op string, caller account.Account, id uint64) (*Listing, error) {
	listing, ok := s.listings[id]
	if !ok {
		return nil, failure.New(failure.ErrNotFound, op, "model %d", id)
	}
	if caller != listing.Owner {
		return nil, failure.New(failure.ErrUnauthorized, op, "%s does not own model %d", caller, id)
	}
	return listing, nil
}

func (s *Service) relist(listing *Listing, price *uint256.Int, forSale bool) {
	listing.Price = *price
	listing.ForSale = forSale
	listing.UpdatedAt = s.now().UTC()
	s.emit.Emit(ListingUpdated{
		ID:      listing.ID,
		Owner:   listing.Owner,
		Price:   new(uint256.Int).Set(price),
		ForSale: forSale,
	})
}

// BuyModel settles a purchase. The buyer must have approved Account() for
// at least the price. Funds are pulled into the marketplace account and
// paid out from there; the listing changes hands only after both
// payments succeed. The caller runs this inside a ledger transaction so
// a failed payment rolls the pull back.
func (s *Service) BuyModel(caller account.Account, id uint64) (ModelSold, error) {
	const op = "buyModel"
	listing, ok := s.listings[id]
	if !ok {
		return ModelSold{}, failure.New(failure.ErrNotFound, op, "model %d", id)
	}
	if !listing.ForSale {
		return ModelSold{}, failure.New(failure.ErrNotForSale, op, "model %d", id)
	}
	if caller == listing.Owner {
		return ModelSold{}, failure.New(failure.ErrSelfPurchase, op, "%s already owns model %d", caller, id)
	}

	price := new(uint256.Int).Set(&listing.Price)
	seller := listing.Owner
	royalty, proceeds := Split(price, listing.RoyaltyPercentage)
	if seller == listing.OriginalCreator {
		royalty = new(uint256.Int)
		proceeds = new(uint256.Int).Set(price)
	}

	if err := s.module.Pull(op, caller, s.module.Account(), price); err != nil {
		return ModelSold{}, err
	}
	if !royalty.IsZero() {
		if err := s.module.Pay(op, s.module.Account(), listing.OriginalCreator, royalty); err != nil {
			return ModelSold{}, err
		}
	}
	if !proceeds.IsZero() {
		if err := s.module.Pay(op, s.module.Account(), seller, proceeds); err != nil {
			return ModelSold{}, err
		}
	}

	listing.Owner = caller
	listing.ForSale = false
	listing.TotalSales++
	listing.UpdatedAt = s.now().UTC()

	sold := ModelSold{
		ID:              id,
		From:            seller,
		To:              caller,
		Price:           price,
		Royalty:         royalty,
		OriginalCreator: listing.OriginalCreator,
	}
	s.emit.Emit(sold)
	return sold, nil
}

func (s *Service) SetVerified(caller account.Account, id uint64, verified bool) error {
	const op = "setVerified"
	if !s.roles.HasRole(roles.MarketplaceVerifier, caller) {
		return failure.New(failure.ErrUnauthorized, op, "%s does not hold %s", caller, roles.MarketplaceVerifier)
	}
	listing, ok := s.listings[id]
	if !ok {
		return failure.New(failure.ErrNotFound, op, "model %d", id)
	}
	listing.Verified = verified
	listing.UpdatedAt = s.now().UTC()
	s.emit.Emit(ModelVerified{ID: id, Verified: verified, Verifier: caller, Owner: listing.Owner})
	return nil
}

// GetModelDetails returns a copy of the listing.
func (s *Service) GetModelDetails(id uint64) (Listing, error) {
	listing, ok := s.listings[id]
	if !ok {
		return Listing{}, failure.New(failure.ErrNotFound, "getModelDetails", "model %d", id)
	}
	return listing.clone(), nil
}

// ListModels returns copies of every listing ordered by id.
func (s *Service) ListModels() []Listing {
	out := make([]Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) ModelCount() int { return len(s.listings) }
