package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client owns the Firebase app and its Firestore handle.
type Client struct {
	app *firebase.App
	fs  *gcpfirestore.Client
}

// New initializes Firebase for the configured project and opens Firestore.
// Credentials come from inline JSON, a key file, or application default credentials.
func New(ctx context.Context, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening firestore: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", projectID), "firestore client initialized")
	}
	return &Client{app: app, fs: fs}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Firestore exposes the document client.
func (c *Client) Firestore() *gcpfirestore.Client {
	if c == nil {
		return nil
	}
	return c.fs
}

// Ping lists at most one collection to prove the connection works.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.fs == nil {
		return errors.New("firestore client not initialized")
	}
	if _, err := c.fs.Collections(ctx).Next(); err != nil && !IsDone(err) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close releases the Firestore connection.
func (c *Client) Close() error {
	if c == nil || c.fs == nil {
		return nil
	}
	return c.fs.Close()
}
