package mfa

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"matterguard/authcore/internal/mfa/domain"
	"matterguard/authcore/internal/mfa/store"
	"matterguard/authcore/internal/security"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *time.Time) {
	t.Helper()
	box, err := security.NewSecretBoxFromSecret([]byte("test-mfa-secret"), []byte("test-salt"), 1000)
	if err != nil {
		t.Fatalf("NewSecretBoxFromSecret: %v", err)
	}
	st := store.NewMemoryStore()
	e := NewEngine(st, box, security.NewHasher(4), "MatterGuard")
	// Mid-period so one-step clock moves stay inside the same TOTP counter.
	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	e.nowF = func() time.Time { return now }
	return e, st, &now
}

func enrollAndActivate(t *testing.T, e *Engine, now time.Time) *EnrollmentResult {
	t.Helper()
	res, err := e.Enroll(context.Background(), "user-1", "org-1", "user-1@example.com")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	code := codeAt(t, res.Secret, now)
	if err := e.VerifyEnrollment(context.Background(), "user-1", code); err != nil {
		t.Fatalf("VerifyEnrollment: %v", err)
	}
	return res
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func TestEngine_Enroll(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Enroll(ctx, "user-1", "org-1", "user-1@example.com")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(res.Secret)
	if err != nil {
		t.Fatalf("secret is not valid Base32: %v", err)
	}
	if len(raw) != 20 {
		t.Errorf("secret entropy = %d bytes, want 20", len(raw))
	}

	if !strings.HasPrefix(res.OTPAuthURL, "otpauth://totp/") {
		t.Errorf("OTPAuthURL = %q", res.OTPAuthURL)
	}
	if !strings.Contains(res.OTPAuthURL, "issuer=MatterGuard") {
		t.Errorf("OTPAuthURL missing issuer: %q", res.OTPAuthURL)
	}
	if !strings.Contains(res.OTPAuthURL, "secret="+res.Secret) {
		t.Errorf("OTPAuthURL missing secret: %q", res.OTPAuthURL)
	}

	if len(res.BackupCodes) != DefaultBackupCodeCount {
		t.Errorf("backup codes = %d, want %d", len(res.BackupCodes), DefaultBackupCodeCount)
	}
	if len(strings.Split(res.RecoveryKey, "-")) != 8 {
		t.Errorf("recovery key should be eight groups: %q", res.RecoveryKey)
	}

	rec, _ := st.Get(ctx, "user-1")
	if !rec.Pending() {
		t.Errorf("stored state = %q, want pending", rec.State)
	}
	if strings.Contains(rec.SecretSealed, res.Secret) {
		t.Error("stored record contains the raw secret")
	}
	for _, code := range res.BackupCodes {
		for _, h := range rec.BackupCodeHashes {
			if h == code || h == NormalizeCode(code) {
				t.Error("stored record contains a raw backup code")
			}
		}
	}
}

func TestEngine_Enroll_ReplacesPending(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Enroll(ctx, "user-1", "org-1", "")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	second, err := e.Enroll(ctx, "user-1", "org-1", "")
	if err != nil {
		t.Fatalf("second Enroll: %v", err)
	}
	if first.Secret == second.Secret {
		t.Error("re-enrollment did not rotate the secret")
	}

	rec, _ := st.Get(ctx, "user-1")
	sealed, err := e.box.Open(rec.SecretSealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(sealed) != second.Secret {
		t.Error("store does not hold the latest pending secret")
	}
}

func TestEngine_Enroll_ActiveRejected(t *testing.T) {
	e, _, now := newTestEngine(t)
	enrollAndActivate(t, e, *now)

	if _, err := e.Enroll(context.Background(), "user-1", "org-1", ""); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("want ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEngine_VerifyEnrollment(t *testing.T) {
	e, st, now := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Enroll(ctx, "user-1", "org-1", "")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	if err := e.VerifyEnrollment(ctx, "user-1", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("bad code: want ErrInvalidCode, got %v", err)
	}
	rec, _ := st.Get(ctx, "user-1")
	if !rec.Pending() {
		t.Fatal("failed verification must not promote the record")
	}

	if err := e.VerifyEnrollment(ctx, "user-1", codeAt(t, res.Secret, *now)); err != nil {
		t.Fatalf("VerifyEnrollment: %v", err)
	}
	rec, _ = st.Get(ctx, "user-1")
	if !rec.Active() {
		t.Errorf("state = %q, want active", rec.State)
	}
	if rec.VerifiedAt == nil {
		t.Error("VerifiedAt not set")
	}

	if err := e.VerifyEnrollment(ctx, "user-1", codeAt(t, res.Secret, *now)); !errors.Is(err, ErrNoPendingEnrollment) {
		t.Fatalf("second activation: want ErrNoPendingEnrollment, got %v", err)
	}
}

func TestEngine_VerifyEnrollment_NoRecord(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.VerifyEnrollment(context.Background(), "ghost", "123456"); !errors.Is(err, ErrNoPendingEnrollment) {
		t.Fatalf("want ErrNoPendingEnrollment, got %v", err)
	}
}

func TestEngine_VerifyCode_DriftWindow(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	genTime := *now
	code := codeAt(t, res.Secret, genTime)

	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"same period", 0, true},
		{"one period later", 30 * time.Second, true},
		{"one period earlier", -30 * time.Second, true},
		{"two periods later", 60 * time.Second, false},
		{"two periods earlier", -60 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			*now = genTime.Add(tc.offset)
			ok, err := e.VerifyCode(ctx, "user-1", code)
			if err != nil {
				t.Fatalf("VerifyCode: %v", err)
			}
			if ok != tc.want {
				t.Errorf("VerifyCode at %v = %v, want %v", tc.offset, ok, tc.want)
			}
		})
	}
}

func TestEngine_VerifyCode_RecheckableWithinWindow(t *testing.T) {
	e, st, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	code := codeAt(t, res.Secret, *now)
	for i := 0; i < 2; i++ {
		ok, err := e.VerifyCode(ctx, "user-1", code)
		if err != nil || !ok {
			t.Fatalf("use %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	rec, _ := st.Get(ctx, "user-1")
	if rec.LastUsedAt == nil {
		t.Error("LastUsedAt not recorded")
	}
}

func TestEngine_VerifyCode_NotActive(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.VerifyCode(ctx, "ghost", "123456"); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("unenrolled: want ErrNotEnrolled, got %v", err)
	}

	if _, err := e.Enroll(ctx, "user-1", "org-1", ""); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := e.VerifyCode(ctx, "user-1", "123456"); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("pending: want ErrNotEnrolled, got %v", err)
	}
}

func TestEngine_VerifyBackupCode_SingleUse(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	code := res.BackupCodes[3]
	first, err := e.VerifyBackupCode(ctx, "user-1", code)
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if !first.Valid {
		t.Fatal("fresh backup code rejected")
	}
	if first.ConsumedIndex != 3 {
		t.Errorf("ConsumedIndex = %d, want 3", first.ConsumedIndex)
	}
	if first.Remaining != DefaultBackupCodeCount-1 {
		t.Errorf("Remaining = %d", first.Remaining)
	}

	second, err := e.VerifyBackupCode(ctx, "user-1", code)
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if second.Valid {
		t.Error("consumed backup code accepted a second time")
	}
	if second.ConsumedIndex != -1 {
		t.Errorf("ConsumedIndex = %d, want -1", second.ConsumedIndex)
	}
}

func TestEngine_VerifyBackupCode_InputNormalization(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	sloppy := strings.ToLower(strings.ReplaceAll(res.BackupCodes[0], "-", " "))
	got, err := e.VerifyBackupCode(ctx, "user-1", sloppy)
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if !got.Valid {
		t.Error("normalized input should match")
	}
}

func TestEngine_VerifyBackupCode_Invalid(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	enrollAndActivate(t, e, *now)

	got, err := e.VerifyBackupCode(ctx, "user-1", "ZZZZ-ZZZZ")
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if got.Valid || got.ConsumedIndex != -1 {
		t.Errorf("got %+v", got)
	}
	if got.Remaining != DefaultBackupCodeCount {
		t.Errorf("invalid attempt must not consume codes, remaining %d", got.Remaining)
	}
}

func TestEngine_RegenerateBackupCodes(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	fresh, err := e.RegenerateBackupCodes(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegenerateBackupCodes: %v", err)
	}
	if len(fresh) != DefaultBackupCodeCount {
		t.Errorf("regenerated %d codes", len(fresh))
	}

	old, err := e.VerifyBackupCode(ctx, "user-1", res.BackupCodes[0])
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if old.Valid {
		t.Error("old backup code survived regeneration")
	}
	nw, err := e.VerifyBackupCode(ctx, "user-1", fresh[0])
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if !nw.Valid {
		t.Error("fresh backup code rejected")
	}
}

func TestEngine_VerifyRecoveryKey(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()
	res := enrollAndActivate(t, e, *now)

	ok, err := e.VerifyRecoveryKey(ctx, "user-1", res.RecoveryKey)
	if err != nil || !ok {
		t.Fatalf("correct key: ok=%v err=%v", ok, err)
	}

	sloppy := strings.ToLower(strings.ReplaceAll(res.RecoveryKey, "-", ""))
	ok, err = e.VerifyRecoveryKey(ctx, "user-1", sloppy)
	if err != nil || !ok {
		t.Fatalf("normalized key: ok=%v err=%v", ok, err)
	}

	ok, err = e.VerifyRecoveryKey(ctx, "user-1", "AAAA-BBBB-CCCC-DDDD-EEEE-FFFF-GGGG-HHHH")
	if err != nil {
		t.Fatalf("VerifyRecoveryKey: %v", err)
	}
	if ok {
		t.Error("wrong recovery key accepted")
	}

	// Recovery must still work after the enrollment is disabled.
	if err := e.Disable(ctx, "user-1"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	ok, err = e.VerifyRecoveryKey(ctx, "user-1", res.RecoveryKey)
	if err != nil || !ok {
		t.Fatalf("after disable: ok=%v err=%v", ok, err)
	}
}

func TestEngine_Disable(t *testing.T) {
	e, st, now := newTestEngine(t)
	ctx := context.Background()
	enrollAndActivate(t, e, *now)

	if err := e.Disable(ctx, "user-1"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	rec, _ := st.Get(ctx, "user-1")
	if rec.State != domain.StateDisabled {
		t.Errorf("state = %q", rec.State)
	}
	if rec.DisabledAt == nil {
		t.Error("DisabledAt not set")
	}
	if rec.SecretSealed == "" {
		t.Error("Disable must not wipe the record")
	}

	if _, err := e.VerifyCode(ctx, "user-1", "123456"); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("disabled enrollment: want ErrNotEnrolled, got %v", err)
	}
	if err := e.Disable(ctx, "user-1"); err != nil {
		t.Errorf("Disable should be idempotent: %v", err)
	}
	if err := e.Disable(ctx, "ghost"); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("want ErrNotEnrolled, got %v", err)
	}
}

func TestEngine_Status(t *testing.T) {
	e, _, now := newTestEngine(t)
	ctx := context.Background()

	st, err := e.Status(ctx, "user-1")
	if err != nil || st != domain.StateUnenrolled {
		t.Fatalf("Status = %q, %v", st, err)
	}

	res, _ := e.Enroll(ctx, "user-1", "org-1", "")
	if st, _ = e.Status(ctx, "user-1"); st != domain.StatePending {
		t.Errorf("Status = %q, want pending", st)
	}

	_ = e.VerifyEnrollment(ctx, "user-1", codeAt(t, res.Secret, *now))
	if st, _ = e.Status(ctx, "user-1"); st != domain.StateActive {
		t.Errorf("Status = %q, want active", st)
	}

	_ = e.Disable(ctx, "user-1")
	if st, _ = e.Status(ctx, "user-1"); st != domain.StateDisabled {
		t.Errorf("Status = %q, want disabled", st)
	}
}
