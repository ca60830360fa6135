package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/callumw118/Secret-Register-Login/internal/credential"
	"github.com/callumw118/Secret-Register-Login/internal/model"
	"github.com/callumw118/Secret-Register-Login/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	updateSecretFn   func(ctx context.Context, userID, secret string) error
	listWithSecretFn func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateSecret(ctx context.Context, userID, secret string) error {
	if m.updateSecretFn != nil {
		return m.updateSecretFn(ctx, userID, secret)
	}
	return nil
}

func (m *mockUserRepo) ListWithSecret(ctx context.Context) ([]*model.User, error) {
	if m.listWithSecretFn != nil {
		return m.listWithSecretFn(ctx)
	}
	return nil, nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	findOrCreateFn   func(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) FindOrCreate(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, user, identity)
	}
	return user.ID, true, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// mockVerifier はエンコード済みであることを識別可能な変換で模擬する。
type mockVerifier struct {
	compareFn        func(stored, plaintext string) error
	dummyCompareCall int
}

func (m *mockVerifier) Encode(plaintext string) (string, error) {
	return "encoded:" + plaintext, nil
}

func (m *mockVerifier) Compare(stored, plaintext string) error {
	if m.compareFn != nil {
		return m.compareFn(stored, plaintext)
	}
	if stored == "encoded:"+plaintext {
		return nil
	}
	return credential.ErrMismatch
}

func (m *mockVerifier) DummyCompare(plaintext string) {
	m.dummyCompareCall++
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ credential.Verifier = (*mockVerifier)(nil)

func newTestService(oauth OAuthProvider, verifier credential.Verifier, userRepo repository.UserRepository, identRepo repository.IdentityRepository, sessionRepo repository.SessionRepository) *Service {
	return NewService(oauth, verifier, userRepo, identRepo, sessionRepo, nil, ServiceConfig{
		SessionSecret: "test-session-secret-32bytes-long!",
		SessionMaxAge: 86400,
	})
}

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := newTestService(provider, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{})

	url := svc.GetLoginURL("test-state")

	expected := "https://accounts.google.com/o/oauth2/auth?state=test-state"
	if url != expected {
		t.Errorf("GetLoginURL() = %q, want %q", url, expected)
	}
}

func TestRegister_Success_CreatesUserAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, sessionRepo)

	session, err := svc.Register(ctx, "new@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "new@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "new@example.com")
	}

	// 認証情報は平文のまま保存されないこと
	if !createdUser.Credential.Valid {
		t.Fatal("expected credential to be set")
	}
	if createdUser.Credential.String == "password123" {
		t.Error("credential must not be stored as plaintext")
	}
	if createdUser.Credential.String != "encoded:password123" {
		t.Errorf("credential = %q, want encoded form", createdUser.Credential.String)
	}

	if createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if createdSession.UserID != createdUser.ID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, createdUser.ID)
	}
	if createdSession.ExpiresAt.Before(time.Now()) {
		t.Error("session should not be expired")
	}
}

func TestRegister_EmptyInput_RejectedBeforeStore(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			t.Fatal("store should not be touched for empty input")
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, &mockSessionRepo{})

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password"},
		{"empty password", "user@example.com", ""},
		{"both empty", "", ""},
		{"whitespace email", "   ", "password"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)

			var appErr *model.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != model.ErrCodeValidation {
				t.Errorf("error code = %q, want %q", appErr.Code, model.ErrCodeValidation)
			}
		})
	}
}

func TestRegister_DuplicateEmail_ReturnsDuplicateIdentityError(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			// DBのUNIQUE制約違反をシミュレート
			return &pq.Error{Code: "23505"}
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Fatal("session should not be created for duplicate registration")
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, sessionRepo)

	_, err := svc.Register(ctx, "taken@example.com", "password123")

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != model.ErrCodeDuplicateIdentity {
		t.Errorf("error code = %q, want %q", appErr.Code, model.ErrCodeDuplicateIdentity)
	}
}

func TestLoginLocal_Success_EstablishesSessionForStoredUser(t *testing.T) {
	ctx := context.Background()

	storedUser := &model.User{ID: "user-1", Email: "user@example.com"}
	storedUser.Credential.String = "encoded:correct-password"
	storedUser.Credential.Valid = true

	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email == "user@example.com" {
				return storedUser, nil
			}
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, sessionRepo)

	session, err := svc.LoginLocal(ctx, "user@example.com", "correct-password")
	if err != nil {
		t.Fatalf("LoginLocal() error = %v", err)
	}

	if session == nil {
		t.Fatal("expected non-nil session")
	}
	// セッションは保存済みユーザー行に対して確立されること
	if createdSession.UserID != "user-1" {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, "user-1")
	}
}

func TestLoginLocal_UnknownUser_ReturnsMismatchAndBurnsCompare(t *testing.T) {
	ctx := context.Background()

	verifier := &mockVerifier{}
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, verifier, userRepo, &mockIdentityRepo{}, &mockSessionRepo{})

	_, err := svc.LoginLocal(ctx, "nobody@example.com", "whatever")

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != model.ErrCodeNotFoundOrMismatch {
		t.Errorf("error code = %q, want %q", appErr.Code, model.ErrCodeNotFoundOrMismatch)
	}

	// 不在でも照合コストを消費してタイミングを揃えること
	if verifier.dummyCompareCall != 1 {
		t.Errorf("DummyCompare calls = %d, want 1", verifier.dummyCompareCall)
	}
}

func TestLoginLocal_WrongPassword_IndistinguishableFromUnknownUser(t *testing.T) {
	ctx := context.Background()

	storedUser := &model.User{ID: "user-1", Email: "user@example.com"}
	storedUser.Credential.String = "encoded:correct-password"
	storedUser.Credential.Valid = true

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email == "user@example.com" {
				return storedUser, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, &mockSessionRepo{})

	_, errWrong := svc.LoginLocal(ctx, "user@example.com", "wrong-password")
	_, errUnknown := svc.LoginLocal(ctx, "nobody@example.com", "wrong-password")

	var wrongErr, unknownErr *model.AppError
	if !errors.As(errWrong, &wrongErr) || !errors.As(errUnknown, &unknownErr) {
		t.Fatalf("expected AppError values, got %v / %v", errWrong, errUnknown)
	}

	// 不在と不一致は外部から区別できないこと
	if wrongErr.Code != unknownErr.Code {
		t.Errorf("error codes differ: %q vs %q", wrongErr.Code, unknownErr.Code)
	}
	if wrongErr.Message != unknownErr.Message {
		t.Errorf("error messages differ: %q vs %q", wrongErr.Message, unknownErr.Message)
	}
}

func TestLoginLocal_OAuthOnlyUser_ReturnsMismatch(t *testing.T) {
	ctx := context.Background()

	// OAuth連携のみで作成されたユーザーにはローカル認証情報が無い
	oauthOnlyUser := &model.User{ID: "user-2", Email: "oauth@example.com"}

	verifier := &mockVerifier{}
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return oauthOnlyUser, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, verifier, userRepo, &mockIdentityRepo{}, &mockSessionRepo{})

	_, err := svc.LoginLocal(ctx, "oauth@example.com", "any-password")

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != model.ErrCodeNotFoundOrMismatch {
		t.Errorf("error code = %q, want %q", appErr.Code, model.ErrCodeNotFoundOrMismatch)
	}
	if verifier.dummyCompareCall != 1 {
		t.Errorf("DummyCompare calls = %d, want 1", verifier.dummyCompareCall)
	}
}

func TestHandleCallback_NewUser_CreatesAndLogsIn(t *testing.T) {
	ctx := context.Background()

	var candidateUser *model.User
	var candidateIdentity *model.Identity
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "test@example.com",
				Name:           "Test User",
				Provider:       "google",
			}, nil
		},
	}
	identRepo := &mockIdentityRepo{
		findOrCreateFn: func(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
			candidateUser = user
			candidateIdentity = identity
			return user.ID, true, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(provider, &mockVerifier{}, &mockUserRepo{}, identRepo, sessionRepo)

	session, err := svc.HandleCallback(ctx, "auth-code-123")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if candidateUser == nil {
		t.Fatal("expected find-or-create to receive a candidate user")
	}
	if candidateUser.Email != "test@example.com" {
		t.Errorf("candidate email = %q, want %q", candidateUser.Email, "test@example.com")
	}
	if candidateUser.Name != "Test User" {
		t.Errorf("candidate name = %q, want %q", candidateUser.Name, "Test User")
	}
	// OAuthユーザーはローカル認証情報を持たないこと
	if candidateUser.Credential.Valid {
		t.Error("oauth candidate should not carry a local credential")
	}

	if candidateIdentity == nil {
		t.Fatal("expected find-or-create to receive a candidate identity")
	}
	if candidateIdentity.Provider != "google" {
		t.Errorf("identity provider = %q, want %q", candidateIdentity.Provider, "google")
	}
	if candidateIdentity.ProviderUserID != "google-user-123" {
		t.Errorf("identity providerUserID = %q, want %q", candidateIdentity.ProviderUserID, "google-user-123")
	}
	if candidateIdentity.UserID != candidateUser.ID {
		t.Errorf("identity userID = %q, want %q", candidateIdentity.UserID, candidateUser.ID)
	}

	if createdSession.UserID != candidateUser.ID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, candidateUser.ID)
	}
}

func TestHandleCallback_ExistingUser_SessionForWinnerRow(t *testing.T) {
	ctx := context.Background()

	existingUserID := "existing-user-456"
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-789",
				Email:          "existing@example.com",
				Name:           "Existing User",
				Provider:       "google",
			}, nil
		},
	}
	identRepo := &mockIdentityRepo{
		findOrCreateFn: func(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
			// 候補行は破棄され、既存ユーザーのIDが返る
			return existingUserID, false, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(provider, &mockVerifier{}, &mockUserRepo{}, identRepo, sessionRepo)

	_, err := svc.HandleCallback(ctx, "auth-code-456")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if createdSession.UserID != existingUserID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, existingUserID)
	}
}

func TestHandleCallback_ExchangeFails_NoSession(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("token endpoint returned 400")
		},
	}
	identRepo := &mockIdentityRepo{
		findOrCreateFn: func(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
			t.Fatal("find-or-create should not run when exchange fails")
			return "", false, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Fatal("session should not be created when exchange fails")
			return nil
		},
	}
	svc := newTestService(provider, &mockVerifier{}, &mockUserRepo{}, identRepo, sessionRepo)

	_, err := svc.HandleCallback(ctx, "bad-code")
	if err == nil {
		t.Fatal("expected error")
	}
}

// 同一subjectへの並行コールバックでもユーザー行がちょうど1行になることを、
// 原子的なfind-or-createを模したストアで検証する。
func TestHandleCallback_ConcurrentSameSubject_SingleUser(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-race-1",
				Email:          "race@example.com",
				Provider:       "google",
			}, nil
		},
	}

	var mu sync.Mutex
	winners := map[string]string{} // subject -> winner userID
	identRepo := &mockIdentityRepo{
		findOrCreateFn: func(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			key := identity.Provider + "/" + identity.ProviderUserID
			if winner, ok := winners[key]; ok {
				return winner, false, nil
			}
			winners[key] = user.ID
			return user.ID, true, nil
		},
	}

	var sessionMu sync.Mutex
	var sessionUserIDs []string
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionMu.Lock()
			defer sessionMu.Unlock()
			sessionUserIDs = append(sessionUserIDs, session.UserID)
			return nil
		},
	}

	svc := newTestService(provider, &mockVerifier{}, &mockUserRepo{}, identRepo, sessionRepo)

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.HandleCallback(ctx, "auth-code"); err != nil {
				t.Errorf("HandleCallback() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("user rows = %d, want 1", len(winners))
	}
	if len(sessionUserIDs) != goroutines {
		t.Fatalf("sessions = %d, want %d", len(sessionUserIDs), goroutines)
	}
	for _, userID := range sessionUserIDs {
		if userID != winners["google/google-race-1"] {
			t.Errorf("session userID = %q, want winner %q", userID, winners["google/google-race-1"])
		}
	}
}

func TestRestore_ValidToken_ReturnsUser(t *testing.T) {
	ctx := context.Background()

	storedUser := &model.User{ID: "user-1", Email: "user@example.com"}
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id == "user-1" {
				return storedUser, nil
			}
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if createdSession != nil && id == createdSession.ID {
				return createdSession, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, sessionRepo)

	session, err := svc.createSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("createSession() error = %v", err)
	}

	user, err := svc.Restore(ctx, svc.SessionToken(session))
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user == nil {
		t.Fatal("expected restored user")
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", user.ID, "user-1")
	}
}

func TestRestore_TamperedToken_AnonymousWithoutStoreAccess(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			t.Fatal("store must not be queried for an invalid signature")
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	user, err := svc.Restore(ctx, "fake-session-id.deadbeef")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user != nil {
		t.Error("tampered token should restore to Anonymous")
	}
}

func TestRestore_UnknownSession_Anonymous(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れまたは破棄済み
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	token := signSessionToken(svc.config.SessionSecret, "vanished-session")
	user, err := svc.Restore(ctx, token)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user != nil {
		t.Error("unknown session should restore to Anonymous")
	}
}

func TestRestore_UserVanished_Anonymous(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "gone-user", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, userRepo, &mockIdentityRepo{}, sessionRepo)

	token := signSessionToken(svc.config.SessionSecret, "orphan-session")
	user, err := svc.Restore(ctx, token)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user != nil {
		t.Error("session for a vanished user should restore to Anonymous")
	}
}

func TestRestore_StoreError_Propagates(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	token := signSessionToken(svc.config.SessionSecret, "some-session")
	_, err := svc.Restore(ctx, token)
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestLogout_ValidToken_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	token := signSessionToken(svc.config.SessionSecret, "session-to-kill")
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedID != "session-to-kill" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-to-kill")
	}
}

func TestLogout_GarbageToken_IdempotentNoop(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			t.Fatal("store should not be touched for an unverifiable token")
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	if err := svc.Logout(ctx, "not-a-valid-token"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
}

func TestSessionToken_DistinctSessions_DistinctTokens(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{}
	svc := newTestService(&mockOAuthProvider{}, &mockVerifier{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo)

	s1, err := svc.createSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("createSession() error = %v", err)
	}
	s2, err := svc.createSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("createSession() error = %v", err)
	}

	if s1.ID == s2.ID {
		t.Error("session IDs should be unique per login")
	}
	if svc.SessionToken(s1) == svc.SessionToken(s2) {
		t.Error("session tokens should differ per session")
	}
}
