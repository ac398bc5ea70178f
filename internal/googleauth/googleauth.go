package googleauth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"worksync/internal/config"
)

var ErrNoCredentials = errors.New("no google credentials: set GOOGLE_CREDENTIALS_FILE or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET/GOOGLE_REFRESH_TOKEN")

// ClientOptions picks a service account file when configured, otherwise an OAuth
// refresh token for the given scopes.
func ClientOptions(ctx context.Context, cfg config.Config, scopes ...string) ([]option.ClientOption, error) {
	if strings.TrimSpace(cfg.GoogleCredentialsFile) != "" {
		return []option.ClientOption{
			option.WithCredentialsFile(cfg.GoogleCredentialsFile),
			option.WithScopes(scopes...),
		}, nil
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRefreshToken == "" {
		return nil, ErrNoCredentials
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       scopes,
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	return []option.ClientOption{option.WithTokenSource(tokenSource)}, nil
}
