package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	apperrors "github.com/glhm/console/internal/errors"
)

// SuccessCode is the envelope code the backend uses for success.
const SuccessCode = 200

// UploadField is the multipart field name the backend reads files from.
const UploadField = "fileField"

// Envelope is the backend response wrapper.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Unwrap returns Data when Code is SuccessCode, or an Envelope error.
func (e Envelope[T]) Unwrap() (T, error) {
	if e.Code != SuccessCode {
		var zero T
		return zero, apperrors.Envelope(e.Code, e.Message)
	}
	return e.Data, nil
}

// Blob is a binary response body.
type Blob struct {
	ContentType string
	Data        []byte
}

// File is one file submitted by Upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Get performs a stamped GET and unwraps the envelope.
func Get[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	return call[T](ctx, c, request{method: http.MethodGet, path: path, params: params})
}

// Post performs a stamped POST with query parameters and no body.
func Post[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	return call[T](ctx, c, request{method: http.MethodPost, path: path, params: params})
}

// Delete performs a stamped DELETE and unwraps the envelope.
func Delete[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	return call[T](ctx, c, request{method: http.MethodDelete, path: path, params: params})
}

// PostForm posts a url-encoded form. Fields whose values are all empty are omitted.
func PostForm[T any](ctx context.Context, c *Client, path string, form url.Values) (T, error) {
	return call[T](ctx, c, request{
		method:      http.MethodPost,
		path:        path,
		body:        strings.NewReader(compactForm(form).Encode()),
		contentType: contentTypeForm,
	})
}

// PutForm puts a url-encoded form. Fields whose values are all empty are omitted.
func PutForm[T any](ctx context.Context, c *Client, path string, form url.Values) (T, error) {
	return call[T](ctx, c, request{
		method:      http.MethodPut,
		path:        path,
		body:        strings.NewReader(compactForm(form).Encode()),
		contentType: contentTypeForm,
	})
}

// PostJSON posts body encoded as JSON.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		var zero T
		return zero, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "encode %s body", path)
	}
	return call[T](ctx, c, request{
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(buf),
		contentType: contentTypeJSON,
	})
}

// Upload posts file as multipart/form-data under UploadField, alongside any
// extra text fields. The request stage runs as for every other call.
func Upload[T any](ctx context.Context, c *Client, path string, params url.Values, file File, fields url.Values) (T, error) {
	var zero T
	if file.Body == nil {
		return zero, apperrors.ValidationField(UploadField, "file is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range compactForm(fields) {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "write multipart field")
			}
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, fallback(file.Name, "upload")))
	h.Set("Content-Type", fallback(file.ContentType, "application/octet-stream"))
	part, err := mw.CreatePart(h)
	if err != nil {
		return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create multipart part")
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "copy upload body")
	}
	if err := mw.Close(); err != nil {
		return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "close multipart writer")
	}

	return call[T](ctx, c, request{
		method:      http.MethodPost,
		path:        path,
		params:      params,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	})
}

// Fetch performs a stamped GET and returns the raw body.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) (Blob, error) {
	return c.blob(ctx, request{method: http.MethodGet, path: path, params: params})
}

// NativeGet fetches a resource the way a browser loads an image: the cookie jar
// supplies the credential and no header is attached. A 401 notifies subscribers
// like any other call.
func (c *Client) NativeGet(ctx context.Context, path string, params url.Values) (Blob, error) {
	return c.blob(ctx, request{method: http.MethodGet, path: path, params: params, native: true})
}

func (c *Client) blob(ctx context.Context, r request) (Blob, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		return Blob{}, apperrors.Transport(fmt.Sprintf("read %s", r.path), err)
	}
	if int64(len(data)) > maxBlobBytes {
		return Blob{}, apperrors.Transport(fmt.Sprintf("read %s", r.path), fmt.Errorf("body exceeds %d bytes", maxBlobBytes))
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Blob{ContentType: ct, Data: data}, nil
}

func call[T any](ctx context.Context, c *Client, r request) (T, error) {
	var zero T
	resp, err := c.send(ctx, r)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	// data is decoded only on success so a failure envelope keeps its message
	// whatever shape its data has.
	var raw Envelope[json.RawMessage]
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err := dec.Decode(&raw); err != nil {
		return zero, apperrors.Transport(fmt.Sprintf("decode %s response", r.path), err)
	}
	data, err := raw.Unwrap()
	if err != nil {
		return zero, err
	}
	if len(data) == 0 {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, apperrors.Transport(fmt.Sprintf("decode %s data", r.path), err)
	}
	return out, nil
}

// compactForm drops keys whose values are all empty, mirroring how optional
// fields are left out of submitted forms.
func compactForm(form url.Values) url.Values {
	out := make(url.Values, len(form))
	for k, vs := range form {
		for _, v := range vs {
			if v != "" {
				out.Add(k, v)
			}
		}
	}
	return out
}
