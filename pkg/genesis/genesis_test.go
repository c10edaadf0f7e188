package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/roles"
)

const sample = `
admin: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
roles:
  VERIFIER:
    - "0x00000000000000000000000000000000000000c1"
  MARKETPLACE_VERIFIER:
    - "0x00000000000000000000000000000000000000c2"
mints:
  - to: "0x00000000000000000000000000000000000000b1"
    amount: "1000000"
  - to: "0x00000000000000000000000000000000000000b2"
    amount: "0.5"
`

func TestLoadAndApply(t *testing.T) {
	logger.Silence()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	plan, err := f.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.Admin != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("admin not checksummed: %s", plan.Admin)
	}

	e, err := forge.New(forge.Options{Admin: plan.Admin})
	if err != nil {
		t.Fatalf("forge.New: %v", err)
	}
	n, err := plan.Apply(e)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 events, got %d", n)
	}

	verifier := account.MustNormalize("0x00000000000000000000000000000000000000c1")
	if !e.HasRole(roles.Verifier, verifier) {
		t.Fatal("verifier role not granted")
	}
	holder := account.MustNormalize("0x00000000000000000000000000000000000000b2")
	if got := ledger.FormatUnits(e.BalanceOf(holder)); got != "0.5" {
		t.Fatalf("balance %s, want 0.5", got)
	}
}

func TestResolveRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"bad admin":   "admin: nobody\n",
		"bad role":    "admin: \"0x00000000000000000000000000000000000000a1\"\nroles:\n  OWNER: [\"0x00000000000000000000000000000000000000a2\"]\n",
		"bad amount":  "admin: \"0x00000000000000000000000000000000000000a1\"\nmints:\n  - to: \"0x00000000000000000000000000000000000000a2\"\n    amount: \"-1\"\n",
		"zero amount": "admin: \"0x00000000000000000000000000000000000000a1\"\nmints:\n  - to: \"0x00000000000000000000000000000000000000a2\"\n    amount: \"0\"\n",
		"module":      "admin: \"module:training\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(content))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := f.Resolve(); err == nil {
				t.Fatal("expected Resolve to fail")
			}
		})
	}
}
