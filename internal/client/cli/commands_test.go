package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/catchdex/internal/client/models"
)

type stubSessionStore struct {
	sess models.Session
}

func (s *stubSessionStore) Load(ctx context.Context) error { return nil }
func (s *stubSessionStore) Current() models.Session        { return s.sess }
func (s *stubSessionStore) Token() string                  { return "" }

func (s *stubSessionStore) SetLocal(ctx context.Context, username string) error { return nil }

func (s *stubSessionStore) SetPermanent(ctx context.Context, profile *models.Profile, token string) error {
	return nil
}

func (s *stubSessionStore) ClearToken(ctx context.Context)  {}
func (s *stubSessionStore) Clear(ctx context.Context) error { return nil }

type stubAccountService struct {
	pending int
	logouts int
}

func (a *stubAccountService) Register(ctx context.Context, username, password string) (*models.Profile, error) {
	return &models.Profile{}, nil
}

func (a *stubAccountService) Login(ctx context.Context, username, password string) (*models.Profile, error) {
	return &models.Profile{}, nil
}

func (a *stubAccountService) StartLocal(ctx context.Context, username string) error { return nil }

func (a *stubAccountService) PromoteToPermanent(ctx context.Context, username, password string) (*models.Profile, error) {
	return &models.Profile{}, nil
}

func (a *stubAccountService) PendingCount(ctx context.Context) (int, error) {
	return a.pending, nil
}

func (a *stubAccountService) Logout(ctx context.Context) error {
	a.logouts++
	return nil
}

// answerPrompt replaces the input seam and records the prompt shown.
func answerPrompt(t *testing.T, answer string, prompt *string) {
	t.Helper()
	orig := getSimpleText
	getSimpleText = func(_ *bufio.Reader, p string, _ io.Writer) (string, error) {
		*prompt = p
		return answer, nil
	}
	t.Cleanup(func() { getSimpleText = orig })
}

func TestLogout_LocalOnlyAlwaysAsks(t *testing.T) {
	silencePrint(t)
	account := &stubAccountService{pending: 0}
	app := &App{
		sessions: &stubSessionStore{sess: models.NewLocalSession("")},
		account:  account,
		reader:   bufio.NewReader(strings.NewReader("")),
	}

	var prompt string
	answerPrompt(t, "n", &prompt)
	require.NoError(t, app.Logout(context.Background()))
	assert.Zero(t, account.logouts, "a declined confirmation must not log out")
	assert.Contains(t, prompt, "local-only", "the prompt must explain the data loss")

	answerPrompt(t, "y", &prompt)
	require.NoError(t, app.Logout(context.Background()))
	assert.Equal(t, 1, account.logouts)
}

func TestLogout_PermanentCleanQueueNeedsNoPrompt(t *testing.T) {
	silencePrint(t)
	account := &stubAccountService{pending: 0}
	app := &App{
		sessions: &stubSessionStore{sess: models.Session{AccountID: 7, Mode: models.ModePermanent}},
		account:  account,
		reader:   bufio.NewReader(strings.NewReader("")),
	}

	orig := getSimpleText
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		t.Fatal("a permanent account with a clean queue must log out without asking")
		return "", nil
	}
	t.Cleanup(func() { getSimpleText = orig })

	require.NoError(t, app.Logout(context.Background()))
	assert.Equal(t, 1, account.logouts)
}

func TestLogout_PermanentWithPendingAsks(t *testing.T) {
	silencePrint(t)
	account := &stubAccountService{pending: 3}
	app := &App{
		sessions: &stubSessionStore{sess: models.Session{AccountID: 7, Mode: models.ModePermanent}},
		account:  account,
		reader:   bufio.NewReader(strings.NewReader("")),
	}

	var prompt string
	answerPrompt(t, "n", &prompt)
	require.NoError(t, app.Logout(context.Background()))
	assert.Zero(t, account.logouts)
	assert.Contains(t, prompt, "3 action(s)")
}
