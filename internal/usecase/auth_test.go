package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/security"
)

type authFixture struct {
	service *AuthService
	users   *memoryUsers
	events  *recordingPublisher
	issuer  *security.TokenIssuer
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	users := newMemoryUsers()
	events := &recordingPublisher{}
	issuer := newIssuer(t)
	service := NewAuthService(users, newHasher(t), issuer, security.NewPasswordPolicy(6, 0), events, zaptest.NewLogger(t))
	return authFixture{service: service, users: users, events: events, issuer: issuer}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "  Ada@Example.COM ",
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Password:  "analytical-engine",
	}
}

func TestRegisterCreatesActiveUser(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.service.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.FirstName != "Ada" || !user.IsActive || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordDigest != nil || user.PasswordSalt != nil {
		t.Fatal("returned user must not carry credential material")
	}

	stored, err := f.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if len(stored.PasswordDigest) == 0 || len(stored.PasswordSalt) != security.HMACSaltLength {
		t.Fatal("stored user lacks derived credential")
	}
	if len(f.events.registered) != 1 || f.events.registered[0].UserID != user.ID {
		t.Fatalf("expected one registered event, got %+v", f.events.registered)
	}
}

func TestRegisterRejectsExistingEmailBeforeDerivation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	again := validRegistration()
	again.Email = "ADA@example.com"
	if _, err := f.service.Register(ctx, again); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if f.users.createCalls != 1 {
		t.Fatalf("duplicate should be caught before Create, got %d create calls", f.users.createCalls)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	long := make([]rune, MaxNameLength+1)
	for i := range long {
		long[i] = 'é'
	}

	cases := map[string]func(*RegisterInput){
		"missing email":  func(in *RegisterInput) { in.Email = "   " },
		"bad email":      func(in *RegisterInput) { in.Email = "not-an-email" },
		"blank name":     func(in *RegisterInput) { in.FirstName = "  " },
		"long last name": func(in *RegisterInput) { in.LastName = string(long) },
		"no password":    func(in *RegisterInput) { in.Password = "" },
	}
	for name, mutate := range cases {
		in := validRegistration()
		mutate(&in)
		_, err := f.service.Register(context.Background(), in)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
		var inputErr *InputError
		if !errors.As(err, &inputErr) || len(inputErr.Fields) == 0 {
			t.Fatalf("%s: expected field details, got %v", name, err)
		}
	}

	in := validRegistration()
	in.LastName = string(long[:MaxNameLength])
	if _, err := f.service.Register(context.Background(), in); err != nil {
		t.Fatalf("100 rune name should pass, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)
	in := validRegistration()
	in.Password = "12345"

	if _, err := f.service.Register(context.Background(), in); !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
	if f.users.createCalls != 0 {
		t.Fatal("weak password must not reach the store")
	}
}

func TestConcurrentRegistrationSameEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.users.existsDelay = 20 * time.Millisecond

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.service.Register(context.Background(), validRegistration())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrEmailAlreadyExists):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != attempts-1 || len(others) != 0 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d (others %v)", attempts-1, successes, conflicts, others)
	}
	users, _ := f.users.List(context.Background())
	if len(users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(users))
	}
}

func TestRegisterSurvivesPublishFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.events.err = errors.New("broker down")

	if _, err := f.service.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("publish failure must not fail registration, got %v", err)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered, err := f.service.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	result, err := f.service.Login(ctx, " ADA@example.com", "analytical-engine")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.User.ID != registered.ID || result.User.PasswordDigest != nil {
		t.Fatalf("unexpected login user %+v", result.User)
	}

	claims, err := f.issuer.Parse(result.Token.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != registered.ID || claims.Email != "ada@example.com" || claims.GivenName != "Ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered, err := f.service.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, unknown := f.service.Login(ctx, "nobody@example.com", "analytical-engine")
	_, mismatch := f.service.Login(ctx, "ada@example.com", "wrong-password")

	stored, _ := f.users.GetByID(ctx, registered.ID)
	stored.IsActive = false
	if _, err := f.users.Update(ctx, *stored); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, inactive := f.service.Login(ctx, "ada@example.com", "analytical-engine")

	for name, err := range map[string]error{"unknown": unknown, "mismatch": mismatch, "inactive": inactive} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
		if err.Error() != "invalid email or password" {
			t.Fatalf("%s: message leaks detail: %q", name, err.Error())
		}
	}
}

func TestLoginPropagatesStoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.users.failWith = errStoreDown

	_, err := f.service.Login(context.Background(), "ada@example.com", "analytical-engine")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("store failure must not look like bad credentials")
	}
}

// flakyHasher fails the first failDerives derivations, then delegates.
type flakyHasher struct {
	port.CredentialHasher
	failDerives int
	derives     int
	verified    []port.Credential
}

func (h *flakyHasher) Derive(password string) (port.Credential, error) {
	h.derives++
	if h.derives <= h.failDerives {
		return port.Credential{}, errors.New("entropy source exhausted")
	}
	return h.CredentialHasher.Derive(password)
}

func (h *flakyHasher) Verify(password string, c port.Credential) bool {
	h.verified = append(h.verified, c)
	return h.CredentialHasher.Verify(password, c)
}

func TestUnknownEmailLoginRecoversDecoyAfterDeriveFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hasher := &flakyHasher{CredentialHasher: newHasher(t), failDerives: 1}
	service := NewAuthService(newMemoryUsers(), hasher, newIssuer(t), security.NewPasswordPolicy(6, 0), &recordingPublisher{}, zap.New(core))
	ctx := context.Background()

	if _, err := service.Login(ctx, "nobody@example.com", "analytical-engine"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if logs.FilterMessageSnippet("Decoy credential unavailable").Len() != 1 {
		t.Fatalf("expected decoy failure to be logged, got %v", logs.All())
	}
	if len(hasher.verified) != 0 {
		t.Fatal("no verification should run without a decoy")
	}

	for i := 0; i < 2; i++ {
		if _, err := service.Login(ctx, "nobody@example.com", "analytical-engine"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if hasher.derives != 2 {
		t.Fatalf("expected one retry then reuse, got %d derivations", hasher.derives)
	}
	if len(hasher.verified) != 2 || len(hasher.verified[0].Digest) == 0 {
		t.Fatalf("expected verification against a real decoy, got %+v", hasher.verified)
	}
}
