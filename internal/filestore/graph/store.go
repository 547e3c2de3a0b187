package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/models"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	DefaultScope   = "https://graph.microsoft.com/.default"
	tokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Config holds the app registration used to read drives
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Scopes       []string
}

// Store reads drive items through Microsoft Graph.
type Store struct {
	client  *http.Client
	baseURL string
}

var _ filestore.Store = (*Store)(nil)

// New builds a Graph store authenticated with the client-credentials grant.
// ctx scopes token refreshes, so it should outlive the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph client id and secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("graph tenant id is required")
		}
		tokenURL = fmt.Sprintf(tokenURLFormat, url.PathEscape(cfg.TenantID))
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return NewWithClient(cc.Client(ctx), cfg.BaseURL), nil
}

// NewWithClient uses an already authenticated HTTP client
func NewWithClient(client *http.Client, baseURL string) *Store {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Store{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type driveItem struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Store) Stat(ctx context.Context, driveID, itemID string) (models.DocumentInfo, error) {
	resp, err := s.get(ctx, s.itemURL(driveID, itemID))
	if err != nil {
		return models.DocumentInfo{}, err
	}
	defer resp.Body.Close()

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return models.DocumentInfo{}, fmt.Errorf("decode drive item: %w", err)
	}
	if item.File == nil {
		return models.DocumentInfo{}, fmt.Errorf("%w: %s is not a file", filestore.ErrNotFound, itemID)
	}
	return models.DocumentInfo{Name: item.Name, MimeType: item.File.MimeType, Size: item.Size}, nil
}

func (s *Store) Open(ctx context.Context, driveID, itemID string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, s.itemURL(driveID, itemID)+"/content")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *Store) itemURL(driveID, itemID string) string {
	return fmt.Sprintf("%s/drives/%s/items/%s", s.baseURL, url.PathEscape(driveID), url.PathEscape(itemID))
}

// get issues an authenticated GET and turns non-2xx replies into errors
func (s *Store) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	var gerr graphError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &gerr)
	err = fmt.Errorf("graph status %d: %s: %s", resp.StatusCode, gerr.Error.Code, gerr.Error.Message)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w", filestore.ErrNotFound, err)
	}
	return nil, err
}
