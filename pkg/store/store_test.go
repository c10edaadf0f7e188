package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/roles"
	"github.com/neuralforge/platform/pkg/training"
)

var (
	admin = account.MustNormalize("0x00000000000000000000000000000000000000a1")
	alice = account.MustNormalize("0x00000000000000000000000000000000000000b1")
	bob   = account.MustNormalize("0x00000000000000000000000000000000000000b2")
)

func populatedEngine(t *testing.T) *forge.Engine {
	t.Helper()
	logger.Silence()
	clock := time.Date(2026, 7, 4, 10, 30, 0, 123456789, time.UTC)
	e, err := forge.New(forge.Options{Admin: admin, Now: func() time.Time { return clock }})
	if err != nil {
		t.Fatalf("forge.New: %v", err)
	}
	steps := []func() error{
		func() error { _, err := e.Mint(admin, alice, uint256.NewInt(5000)); return err },
		func() error { _, err := e.GrantRole(admin, roles.Verifier, bob); return err },
		func() error { _, err := e.Approve(alice, e.TrainingAccount(), uint256.NewInt(700)); return err },
		func() error {
			_, _, err := e.CreateTrainingJob(alice, training.CreateJobInput{ModelRef: "m", Reward: uint256.NewInt(500)})
			return err
		},
		func() error { _, err := e.SubmitTrainingResult(bob, 1, "r", 88); return err },
		func() error { _, _, err := e.ListModel(alice, "ipfs://x", uint256.NewInt(42), 15); return err },
		func() error {
			_, _, err := e.CreateTrainingJob(alice, training.CreateJobInput{Reward: uint256.NewInt(200)})
			return err
		},
		func() error { _, err := e.SubmitTrainingResult(alice, 2, "own", 10); return err },
		func() error { _, _, err := e.CompleteTrainingJobProportionally(bob, 2); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	return e
}

func TestFileStoreRoundTrip(t *testing.T) {
	e := populatedEngine(t)
	fs := NewFileStore(filepath.Join(t.TempDir(), "state", "forge.snapshot"))
	ctx := context.Background()

	if _, err := fs.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if err := fs.Save(ctx, e.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, err := forge.Restore(st, forge.Options{})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if r.Version() != e.Version() {
		t.Fatalf("version %d, want %d", r.Version(), e.Version())
	}
	if !r.BalanceOf(alice).Eq(e.BalanceOf(alice)) {
		t.Fatalf("alice balance %s, want %s", r.BalanceOf(alice).Dec(), e.BalanceOf(alice).Dec())
	}
	job, err := r.GetJobDetails(2)
	if err != nil {
		t.Fatalf("GetJobDetails: %v", err)
	}
	if job.Status != training.StatusCompleted || job.ClosedAt == nil || len(job.Payouts) != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	if !job.CreatedAt.Equal(time.Date(2026, 7, 4, 10, 30, 0, 123456789, time.UTC)) {
		t.Fatalf("timestamp precision lost: %v", job.CreatedAt)
	}
}

func TestEncodeStateIsDeterministic(t *testing.T) {
	st := populatedEngine(t).Snapshot()
	a, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	b, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("equal states encoded differently")
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "forge.snapshot"))
	st := populatedEngine(t).Snapshot()
	for i := 0; i < 3; i++ {
		if err := fs.Save(context.Background(), st); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestRowsRoundTrip(t *testing.T) {
	st := populatedEngine(t).Snapshot()
	rows, err := ToRows(st)
	if err != nil {
		t.Fatalf("ToRows: %v", err)
	}
	if len(rows.Submissions) != 2 || len(rows.Jobs) != 2 || len(rows.Listings) != 1 {
		t.Fatalf("unexpected row counts: %d jobs %d submissions %d listings",
			len(rows.Jobs), len(rows.Submissions), len(rows.Listings))
	}
	back, err := FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if _, err := forge.Restore(back, forge.Options{}); err != nil {
		t.Fatalf("Restore from rows: %v", err)
	}
	if back.Seq != st.Seq || back.Ledger.Supply != st.Ledger.Supply || back.Training.LastID != 2 {
		t.Fatalf("scalars differ: %+v", back)
	}
	if len(back.Training.Jobs[1].Payouts) != 1 {
		t.Fatalf("payouts lost: %+v", back.Training.Jobs[1])
	}
}

func TestFromRowsWithoutMeta(t *testing.T) {
	if _, err := FromRows(Rows{}); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestSnapshotterSavesOnlyOnChange(t *testing.T) {
	e := populatedEngine(t)
	mem := NewMemory()
	s := NewSnapshotter(e, mem, time.Hour)
	ctx := context.Background()

	wrote, err := s.Flush(ctx)
	if err != nil || wrote {
		t.Fatalf("unchanged state flushed: wrote=%v err=%v", wrote, err)
	}
	if _, err := e.Transfer(alice, bob, uint256.NewInt(1)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	wrote, err = s.Flush(ctx)
	if err != nil || !wrote {
		t.Fatalf("changed state not flushed: wrote=%v err=%v", wrote, err)
	}
	st, err := mem.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Seq != e.Version() {
		t.Fatalf("saved seq %d, want %d", st.Seq, e.Version())
	}
}
