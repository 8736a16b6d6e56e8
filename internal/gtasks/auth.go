package gtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"
)

// Authenticate builds a client from an OAuth client secret file and a saved
// user token. Tokens refreshed during the session are written back to
// tokenFile.
func Authenticate(ctx context.Context, credentialsFile, tokenFile string) (*Client, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("loading client secret file: %w", err)
	}
	conf, err := google.ConfigFromJSON(secret, tasksapi.TasksScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	// The token source outlives the authentication request.
	base := conf.TokenSource(context.WithoutCancel(ctx), tok)
	src := oauth2.ReuseTokenSource(tok, &savingSource{src: base, path: tokenFile, last: tok.AccessToken, logger: log.Default()})
	return NewClient(ctx, option.WithTokenSource(src))
}

// storedToken accepts both the oauth2 token layout and the one written by
// the Node googleapis client, which stores expiry as epoch milliseconds.
type storedToken struct {
	oauth2.Token
	ExpiryDate int64 `json:"expiry_date,omitempty"`
}

// LoadToken reads a saved OAuth token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing token %s: %w", path, err)
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, fmt.Errorf("token %s holds neither an access nor a refresh token", path)
	}
	tok := st.Token
	if tok.Expiry.IsZero() && st.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// savingSource persists every new access token it hands out. A token that
// could not be saved is retried on the next refresh.
type savingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *log.Logger

	mu      sync.Mutex
	last    string
	saveErr error
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.saveErr = SaveToken(s.path, tok)
		if s.saveErr != nil {
			if s.logger != nil {
				s.logger.Warn("refreshed token not saved", "path", s.path, "err", s.saveErr)
			}
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
