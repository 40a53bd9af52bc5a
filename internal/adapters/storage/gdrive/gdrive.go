package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"renderfarm/internal/ports"
)

// Client implements ports.StorageProvider backed by Google Drive. Each frame
// becomes one Drive file named by its object key inside folderID.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

// PutObject uploads the frame and returns the Drive file id as Location.
func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file).Fields("id", "size")
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload of frame %s failed: %w", in.ObjectKey, err)
	}

	size := created.Size
	if size == 0 {
		size = in.Size
	}
	return ports.PutObjectOutput{Location: created.Id, Size: size}, nil
}

func (c *Client) DeleteObject(ctx context.Context, location string) error {
	err := c.srv.Files.Delete(location).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}
	return err
}

// Check lists at most one file, which fails fast on revoked credentials.
func (c *Client) Check(ctx context.Context) error {
	call := c.srv.Files.List().PageSize(1).Fields("files(id)").Context(ctx)
	if c.folderID != "" {
		call = call.Q(fmt.Sprintf("'%s' in parents", c.folderID))
	}
	_, err := call.Do()
	return err
}
