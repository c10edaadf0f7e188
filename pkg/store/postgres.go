package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/marketplace"
	"github.com/neuralforge/platform/pkg/roles"
	"github.com/neuralforge/platform/pkg/training"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BalanceModel struct {
	Account string `gorm:"primaryKey;column:account"`
	Amount  string `gorm:"column:amount;type:numeric(78,0);not null"`
}

func (BalanceModel) TableName() string { return "forge_balances" }

type AllowanceModel struct {
	Owner   string `gorm:"primaryKey;column:owner"`
	Spender string `gorm:"primaryKey;column:spender"`
	Amount  string `gorm:"column:amount;type:numeric(78,0);not null"`
}

func (AllowanceModel) TableName() string { return "forge_allowances" }

type RoleModel struct {
	Role    string `gorm:"primaryKey;column:role"`
	Account string `gorm:"primaryKey;column:account"`
}

func (RoleModel) TableName() string { return "forge_roles" }

type ListingModel struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement:false;column:id"`
	Owner             string    `gorm:"column:owner;index"`
	OriginalCreator   string    `gorm:"column:original_creator"`
	ContentRef        string    `gorm:"column:content_ref"`
	Price             string    `gorm:"column:price;type:numeric(78,0)"`
	ForSale           bool      `gorm:"column:for_sale"`
	Verified          bool      `gorm:"column:verified"`
	RoyaltyPercentage uint8     `gorm:"column:royalty_percentage"`
	TotalSales        uint64    `gorm:"column:total_sales"`
	ListedAt          time.Time `gorm:"column:listed_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (ListingModel) TableName() string { return "forge_listings" }

type JobModel struct {
	ID                     uint64         `gorm:"primaryKey;autoIncrement:false;column:id"`
	Creator                string         `gorm:"column:creator;index"`
	ModelRef               string         `gorm:"column:model_ref"`
	DatasetRef             string         `gorm:"column:dataset_ref"`
	Reward                 string         `gorm:"column:reward;type:numeric(78,0)"`
	RequiredComputingPower uint64         `gorm:"column:required_computing_power"`
	DurationSeconds        uint64         `gorm:"column:duration_seconds"`
	Status                 string         `gorm:"column:status"`
	ParticipantCount       uint64         `gorm:"column:participant_count"`
	Payouts                datatypes.JSON `gorm:"column:payouts"`
	CreatedAt              time.Time      `gorm:"column:created_at"`
	ClosedAt               *time.Time     `gorm:"column:closed_at"`
}

func (JobModel) TableName() string { return "forge_jobs" }

type SubmissionModel struct {
	JobID       uint64    `gorm:"primaryKey;autoIncrement:false;column:job_id"`
	Position    int       `gorm:"primaryKey;autoIncrement:false;column:position"`
	Participant string    `gorm:"column:participant"`
	ResultRef   string    `gorm:"column:result_ref"`
	Score       uint8     `gorm:"column:score"`
	SubmittedAt time.Time `gorm:"column:submitted_at"`
}

func (SubmissionModel) TableName() string { return "forge_submissions" }

// MetaModel holds the scalar parts of a snapshot as key/value rows.
type MetaModel struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (MetaModel) TableName() string { return "forge_meta" }

const (
	metaFormat        = "format"
	metaSeq           = "seq"
	metaSavedAt       = "saved_at"
	metaSupply        = "supply"
	metaLastListingID = "last_listing_id"
	metaLastJobID     = "last_job_id"
)

// Rows is a snapshot flattened into table rows.
type Rows struct {
	Meta        []MetaModel
	Balances    []BalanceModel
	Allowances  []AllowanceModel
	Roles       []RoleModel
	Listings    []ListingModel
	Jobs        []JobModel
	Submissions []SubmissionModel
}

func ToRows(st forge.State) (Rows, error) {
	r := Rows{
		Meta: []MetaModel{
			{Key: metaFormat, Value: strconv.Itoa(st.Format)},
			{Key: metaSeq, Value: strconv.FormatUint(st.Seq, 10)},
			{Key: metaSavedAt, Value: st.SavedAt.UTC().Format(time.RFC3339Nano)},
			{Key: metaSupply, Value: st.Ledger.Supply},
			{Key: metaLastListingID, Value: strconv.FormatUint(st.Marketplace.LastID, 10)},
			{Key: metaLastJobID, Value: strconv.FormatUint(st.Training.LastID, 10)},
		},
	}
	for _, b := range st.Ledger.Balances {
		r.Balances = append(r.Balances, BalanceModel{Account: b.Account.String(), Amount: b.Amount})
	}
	for _, a := range st.Ledger.Allowances {
		r.Allowances = append(r.Allowances, AllowanceModel{Owner: a.Owner.String(), Spender: a.Spender.String(), Amount: a.Amount})
	}
	for _, g := range st.Roles.Grants {
		r.Roles = append(r.Roles, RoleModel{Role: string(g.Role), Account: g.Account.String()})
	}
	for _, l := range st.Marketplace.Listings {
		r.Listings = append(r.Listings, ListingModel{
			ID:                l.ID,
			Owner:             l.Owner.String(),
			OriginalCreator:   l.OriginalCreator.String(),
			ContentRef:        l.ContentRef,
			Price:             l.Price,
			ForSale:           l.ForSale,
			Verified:          l.Verified,
			RoyaltyPercentage: l.RoyaltyPercentage,
			TotalSales:        l.TotalSales,
			ListedAt:          l.ListedAt,
			UpdatedAt:         l.UpdatedAt,
		})
	}
	for _, j := range st.Training.Jobs {
		payouts, err := json.Marshal(j.Payouts)
		if err != nil {
			return Rows{}, fmt.Errorf("job %d payouts: %w", j.ID, err)
		}
		r.Jobs = append(r.Jobs, JobModel{
			ID:                     j.ID,
			Creator:                j.Creator.String(),
			ModelRef:               j.ModelRef,
			DatasetRef:             j.DatasetRef,
			Reward:                 j.Reward,
			RequiredComputingPower: j.RequiredComputingPower,
			DurationSeconds:        j.DurationSeconds,
			Status:                 string(j.Status),
			ParticipantCount:       j.ParticipantCount,
			Payouts:                datatypes.JSON(payouts),
			CreatedAt:              j.CreatedAt,
			ClosedAt:               j.ClosedAt,
		})
		for i, sub := range j.Submissions {
			r.Submissions = append(r.Submissions, SubmissionModel{
				JobID:       j.ID,
				Position:    i,
				Participant: sub.Participant.String(),
				ResultRef:   sub.ResultRef,
				Score:       sub.Score,
				SubmittedAt: sub.SubmittedAt,
			})
		}
	}
	return r, nil
}

// FromRows rebuilds a snapshot. Submissions must be ordered by job and
// position.
func FromRows(r Rows) (forge.State, error) {
	meta := make(map[string]string, len(r.Meta))
	for _, m := range r.Meta {
		meta[m.Key] = m.Value
	}
	if _, ok := meta[metaFormat]; !ok {
		return forge.State{}, ErrNoSnapshot
	}

	var st forge.State
	var err error
	if st.Format, err = strconv.Atoi(meta[metaFormat]); err != nil {
		return forge.State{}, fmt.Errorf("meta %s: %w", metaFormat, err)
	}
	if st.Seq, err = strconv.ParseUint(meta[metaSeq], 10, 64); err != nil {
		return forge.State{}, fmt.Errorf("meta %s: %w", metaSeq, err)
	}
	if v := meta[metaSavedAt]; v != "" {
		if st.SavedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return forge.State{}, fmt.Errorf("meta %s: %w", metaSavedAt, err)
		}
	}
	if st.Marketplace.LastID, err = strconv.ParseUint(meta[metaLastListingID], 10, 64); err != nil {
		return forge.State{}, fmt.Errorf("meta %s: %w", metaLastListingID, err)
	}
	if st.Training.LastID, err = strconv.ParseUint(meta[metaLastJobID], 10, 64); err != nil {
		return forge.State{}, fmt.Errorf("meta %s: %w", metaLastJobID, err)
	}
	st.Ledger.Supply = meta[metaSupply]

	for _, b := range r.Balances {
		st.Ledger.Balances = append(st.Ledger.Balances, ledger.BalanceEntry{Account: account.Account(b.Account), Amount: b.Amount})
	}
	for _, a := range r.Allowances {
		st.Ledger.Allowances = append(st.Ledger.Allowances, ledger.AllowanceEntry{
			Owner:   account.Account(a.Owner),
			Spender: account.Account(a.Spender),
			Amount:  a.Amount,
		})
	}
	for _, g := range r.Roles {
		st.Roles.Grants = append(st.Roles.Grants, roles.Grant{Role: roles.Role(g.Role), Account: account.Account(g.Account)})
	}
	for _, l := range r.Listings {
		st.Marketplace.Listings = append(st.Marketplace.Listings, marketplace.ListingRecord{
			ID:                l.ID,
			Owner:             account.Account(l.Owner),
			OriginalCreator:   account.Account(l.OriginalCreator),
			ContentRef:        l.ContentRef,
			Price:             l.Price,
			ForSale:           l.ForSale,
			Verified:          l.Verified,
			RoyaltyPercentage: l.RoyaltyPercentage,
			TotalSales:        l.TotalSales,
			ListedAt:          l.ListedAt,
			UpdatedAt:         l.UpdatedAt,
		})
	}

	subs := make(map[uint64][]training.SubmissionRecord)
	for _, s := range r.Submissions {
		subs[s.JobID] = append(subs[s.JobID], training.SubmissionRecord{
			Participant: account.Account(s.Participant),
			ResultRef:   s.ResultRef,
			Score:       s.Score,
			SubmittedAt: s.SubmittedAt,
		})
	}
	for _, j := range r.Jobs {
		var payouts []training.PayoutRecord
		if len(j.Payouts) > 0 {
			if err := json.Unmarshal(j.Payouts, &payouts); err != nil {
				return forge.State{}, fmt.Errorf("job %d payouts: %w", j.ID, err)
			}
		}
		st.Training.Jobs = append(st.Training.Jobs, training.JobRecord{
			ID:                     j.ID,
			Creator:                account.Account(j.Creator),
			ModelRef:               j.ModelRef,
			DatasetRef:             j.DatasetRef,
			Reward:                 j.Reward,
			RequiredComputingPower: j.RequiredComputingPower,
			DurationSeconds:        j.DurationSeconds,
			Status:                 training.Status(j.Status),
			CreatedAt:              j.CreatedAt,
			ClosedAt:               j.ClosedAt,
			ParticipantCount:       j.ParticipantCount,
			Submissions:            subs[j.ID],
			Payouts:                payouts,
		})
	}
	return st, nil
}

// Repository stores snapshots in Postgres. Each save replaces every
// table inside one transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&MetaModel{},
		&BalanceModel{},
		&AllowanceModel{},
		&RoleModel{},
		&ListingModel{},
		&JobModel{},
		&SubmissionModel{},
	)
}

func (r *Repository) Save(ctx context.Context, st forge.State) error {
	rows, err := ToRows(st)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables := []struct {
			model interface{}
			rows  interface{}
			n     int
		}{
			{&MetaModel{}, rows.Meta, len(rows.Meta)},
			{&BalanceModel{}, rows.Balances, len(rows.Balances)},
			{&AllowanceModel{}, rows.Allowances, len(rows.Allowances)},
			{&RoleModel{}, rows.Roles, len(rows.Roles)},
			{&ListingModel{}, rows.Listings, len(rows.Listings)},
			{&JobModel{}, rows.Jobs, len(rows.Jobs)},
			{&SubmissionModel{}, rows.Submissions, len(rows.Submissions)},
		}
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t.model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", t.model, err)
			}
			if t.n == 0 {
				continue
			}
			if err := tx.CreateInBatches(t.rows, 500).Error; err != nil {
				return fmt.Errorf("insert %T: %w", t.model, err)
			}
		}
		return nil
	})
}

func (r *Repository) Load(ctx context.Context) (forge.State, error) {
	var rows Rows
	db := r.db.WithContext(ctx)
	queries := []struct {
		dest  interface{}
		order string
	}{
		{&rows.Meta, "key"},
		{&rows.Balances, "account"},
		{&rows.Allowances, "owner, spender"},
		{&rows.Roles, "role, account"},
		{&rows.Listings, "id"},
		{&rows.Jobs, "id"},
		{&rows.Submissions, "job_id, position"},
	}
	for _, q := range queries {
		if err := db.Order(q.order).Find(q.dest).Error; err != nil {
			return forge.State{}, fmt.Errorf("load %T: %w", q.dest, err)
		}
	}
	st, err := FromRows(rows)
	if errors.Is(err, ErrNoSnapshot) {
		return forge.State{}, ErrNoSnapshot
	}
	return st, err
}
