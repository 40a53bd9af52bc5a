package storage

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"renderfarm/internal/adapters/storage/gdrive"
	"renderfarm/internal/adapters/storage/localfs"
	"renderfarm/internal/config"
	"renderfarm/internal/pkg/errors"
)

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	switch cfg.Provider {
	case "", config.ProviderLocalFS:
		return localfs.New(cfg.LocalRoot), nil

	case config.ProviderGDrive:
		return newGDriveProvider(ctx, cfg.GDrive)

	default:
		return nil, errors.ValidationField("STORAGE_PROVIDER", "unknown storage provider").
			WithField("value", cfg.Provider)
	}
}

// OAuthConfig is the Drive client shared by the provider and the token helper.
func OAuthConfig(g config.GDrive, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
		RedirectURL:  redirectURL,
	}
}

func newGDriveProvider(ctx context.Context, g config.GDrive) (Provider, error) {
	tok := &oauth2.Token{RefreshToken: g.RefreshToken}
	httpClient := OAuthConfig(g, "").Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrap(err, "storage.newGDriveProvider", "create drive service")
	}
	return gdrive.NewClient(srv, g.FolderID), nil
}
