// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev partner's MFA enrollment already exists.
//
// Identity lives upstream, so there are no user rows to create; the seed
// plants custom policies for the dev org and an active MFA enrollment,
// then prints the ids and secrets needed to exercise the API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"matterguard/authcore/internal/config"
	"matterguard/authcore/internal/db"
	"matterguard/authcore/internal/mfa"
	mfastore "matterguard/authcore/internal/mfa/store"
	"matterguard/authcore/internal/policy"
	policydomain "matterguard/authcore/internal/policy/domain"
	policystore "matterguard/authcore/internal/policy/store"
	"matterguard/authcore/internal/security"
)

const (
	devOrgID       = "dev-org-001"
	devPartnerID   = "dev-user-001"
	devAssociateID = "dev-user-002"
	devPartnerMail = "partner@example.com"
)

// contractorExportDeny blocks exports by contractor accounts in the dev
// org. Uses the same input shape as internal/policy/attributes.go.
const contractorExportDeny = `package matterguard.policy

default match = false

match if {
	"contractor" in input.subject.roles
	input.action == "export"
}
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.AuthSigningSecret == "" || cfg.AuthKDFSalt == "" {
		log.Fatal("AUTH_SIGNING_SECRET and AUTH_KDF_SALT are required to seed MFA enrollments")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	mfaSt := mfastore.NewPostgresStore(conn)

	rec, err := mfaSt.Get(ctx, devPartnerID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if rec != nil {
		log.Println("Seed already applied (dev partner MFA enrollment exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()
	customs := []policydomain.CustomPolicy{
		{
			Name:        "deny-contractor-export",
			OrgID:       devOrgID,
			Description: "contractor accounts may not export documents",
			Effect:      policydomain.EffectDeny,
			Priority:    5,
			Kind:        policydomain.CustomKindRego,
			Source:      contractorExportDeny,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Name:        "allow-billing-clerk-invoice-read",
			OrgID:       devOrgID,
			Description: "billing clerks can read and list invoices",
			Effect:      policydomain.EffectAllow,
			Priority:    40,
			Kind:        policydomain.CustomKindExpr,
			Source:      `"billing_clerk" in subject.roles and resource.type == "invoice" and (action == "read" or action == "list")`,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	// The server refuses to start on a custom policy that does not
	// compile, so check here before storing anything.
	if _, err := policy.FromCustom(customs); err != nil {
		log.Fatalf("seed policy: %v", err)
	}
	policySt := policystore.NewPostgresStore(conn)
	for _, cp := range customs {
		if err := policySt.Upsert(ctx, cp); err != nil {
			log.Fatalf("upsert policy %s: %v", cp.Name, err)
		}
	}

	// Key derivation must match cmd/authd or the server cannot open the
	// sealed TOTP secret.
	mfaKey := security.DeriveKey([]byte(cfg.AuthSigningSecret), []byte(cfg.AuthKDFSalt+":mfa-secrets"), cfg.AuthKDFIterations)
	box, err := security.NewSecretBox(mfaKey)
	if err != nil {
		log.Fatalf("mfa secret box: %v", err)
	}
	engine := mfa.NewEngine(mfaSt, box, security.NewHasher(cfg.BcryptCost), cfg.TOTPIssuer)

	result, err := engine.Enroll(ctx, devPartnerID, devOrgID, devPartnerMail)
	if err != nil {
		log.Fatalf("enroll partner: %v", err)
	}
	code, err := totp.GenerateCodeCustom(result.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Fatalf("generate activation code: %v", err)
	}
	if err := engine.VerifyEnrollment(ctx, devPartnerID, code); err != nil {
		log.Fatalf("activate enrollment: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Org:                    %s\n", devOrgID)
	fmt.Printf("Partner (MFA enrolled): user_id=%s roles=admin,attorney\n", devPartnerID)
	fmt.Printf("Associate (no MFA):     user_id=%s roles=attorney\n", devAssociateID)
	fmt.Printf("TOTP URI:     %s\n", result.OTPAuthURL)
	fmt.Printf("Backup codes: %s\n", strings.Join(result.BackupCodes, " "))
	fmt.Printf("Recovery key: %s\n", result.RecoveryKey)
}
