package backend

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/glhm/console/internal/apiclient"
	apperrors "github.com/glhm/console/internal/errors"
)

const (
	PathImageUpload = "image/upload"
	PathImageUpdate = "image/update"
	PathImageDelete = "image/delete"
	PathImageGet    = "image/get"
)

// Images wraps the image endpoints. Uploads go through the stamped pipeline;
// reads can also go through the cookie channel alone, the way an <img> tag does.
type Images struct {
	client *apiclient.Client
}

// NewImages constructs Images.
func NewImages(client *apiclient.Client) (*Images, error) {
	if client == nil {
		return nil, errors.New("backend images requires an api client")
	}
	return &Images{client: client}, nil
}

// ValidImageID rejects the empty and placeholder ids the UI produces for unset images.
func ValidImageID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != "null" && id != "undefined"
}

func idParams(id string) (url.Values, error) {
	if !ValidImageID(id) {
		return nil, apperrors.ValidationField("id", "image id is required")
	}
	return url.Values{"id": {id}}, nil
}

// Upload stores a new image and returns its id.
func (i *Images) Upload(ctx context.Context, file apiclient.File) (string, error) {
	return apiclient.Upload[string](ctx, i.client, PathImageUpload, nil, file, nil)
}

// Update replaces the content of an existing image.
func (i *Images) Update(ctx context.Context, id string, file apiclient.File) (string, error) {
	params, err := idParams(id)
	if err != nil {
		return "", err
	}
	return apiclient.Upload[string](ctx, i.client, PathImageUpdate, params, file, nil)
}

// Delete removes an image.
func (i *Images) Delete(ctx context.Context, id string) error {
	params, err := idParams(id)
	if err != nil {
		return err
	}
	_, err = apiclient.Post[any](ctx, i.client, PathImageDelete, params)
	return err
}

// Get downloads an image with the credential header attached.
func (i *Images) Get(ctx context.Context, id string) (apiclient.Blob, error) {
	params, err := idParams(id)
	if err != nil {
		return apiclient.Blob{}, err
	}
	return i.client.Fetch(ctx, PathImageGet, params)
}

// GetNative downloads an image relying on the cookie alone.
func (i *Images) GetNative(ctx context.Context, id string) (apiclient.Blob, error) {
	params, err := idParams(id)
	if err != nil {
		return apiclient.Blob{}, err
	}
	return i.client.NativeGet(ctx, PathImageGet, params)
}

// URL returns the absolute image URL, or "" for an unset id.
func (i *Images) URL(id string) string {
	params, err := idParams(id)
	if err != nil {
		return ""
	}
	u, err := i.client.Resolve(PathImageGet, params)
	if err != nil {
		return ""
	}
	return u.String()
}
