// Package objectstore implements backend.Backend against an S3-shaped
// HTTP object store: GET with a Range header for ranged reads, PUT for
// whole-object writes, and the initiate/upload-part/complete/abort
// verbs for multipart upload.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cfadata/cfa/internal/backend"
	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/config"
)

// Object is a backend.Backend bound to one bucket/key pair against a
// single endpoint, using client from the shared connection pool.
type Object struct {
	endpoint string
	bucket string
	key string
	creds config.Credentials
	client *http.Client

	uploadID string // set once InitiateMultipart has run
}

// New returns a Backend for one object, using client for every
// request it issues (the pool hands out one client per endpoint).
func New(endpoint, bucket, key string, creds config.Credentials, client *http.Client) *Object {
	return &Object{endpoint: endpoint, bucket: bucket, key: key, creds: creds, client: client}
}

func (o *Object) Locator() string {
	return fmt.Sprintf("%s/%s/%s", o.endpoint, o.bucket, o.key)
}

func (o *Object) Remote() bool { return true }

func (o *Object) objectURL() string {
	return fmt.Sprintf("%s/%s/%s", o.endpoint, o.bucket, o.key)
}

type noopHandle struct{}

func (noopHandle) Close() error { return nil }

// Open is a no-op handshake for object stores: every request is
// self-contained, so there is no session state to hold open beyond
// what the caller already tracks via mode.
func (o *Object) Open(ctx context.Context, mode backend.OpenMode) (backend.Handle, error) {
	if mode == backend.ModeAppend {
		return nil, cfaerr.UnsupportedOperation(o.Locator(), "object-store backends do not support append, only replace-whole-object writes")
	}
	return noopHandle{}, nil
}

func (o *Object) sign(req *http.Request) {
	if o.creds.AccessKey == "" {
		return
	}
	req.SetBasicAuth(o.creds.AccessKey, o.creds.SecretKey)
}

func (o *Object) do(req *http.Request) (*http.Response, error) {
	o.sign(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, cfaerr.BackendIO(o.Locator(), "issuing object-store request", err)
	}
	return resp, nil
}

func (o *Object) ReadFrom(ctx context.Context, offset, n int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.objectURL(), nil)
	if err != nil {
		return nil, cfaerr.BackendIO(o.Locator(), "building ranged GET request", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+n-1))
	resp, err := o.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusPartialContent, http.StatusOK); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (o *Object) ReadAll(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.objectURL(), nil)
	if err != nil {
		return nil, cfaerr.BackendIO(o.Locator(), "building GET request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (o *Object) WriteAll(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, o.objectURL(), bytes.NewReader(data))
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "building PUT request", err)
	}
	req.ContentLength = int64(len(data))
	resp, err := o.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(o.Locator(), resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

type initiateResult struct {
	UploadID string `xml:"UploadId"`
}

// ensureUpload lazily initiates a multipart upload session on first
// part write.
func (o *Object) ensureUpload(ctx context.Context) error {
	if o.uploadID != "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.objectURL()+"?uploads", nil)
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "building multipart initiate request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return err
	}
	var result initiateResult
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "reading multipart initiate response", err)
	}
	if err := xml.Unmarshal(body, &result); err != nil {
		return cfaerr.BackendIO(o.Locator(), "parsing multipart initiate response", err)
	}
	o.uploadID = result.UploadID
	return nil
}

func (o *Object) WritePart(ctx context.Context, partNumber int, data []byte) (string, error) {
	if err := o.ensureUpload(ctx); err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s?partNumber=%d&uploadId=%s", o.objectURL(), partNumber, o.uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", cfaerr.BackendIO(o.Locator(), "building upload-part request", err)
	}
	req.ContentLength = int64(len(data))
	resp, err := o.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return "", err
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		etag = strconv.Itoa(partNumber)
	}
	return etag, nil
}

type completeMultipartUpload struct {
	XMLName xml.Name `xml:"CompleteMultipartUpload"`
	Parts []completePart
}

type completePart struct {
	PartNumber int
	ETag string
}

func (o *Object) CompleteMultipart(ctx context.Context, parts []backend.Part) error {
	if o.uploadID == "" {
		return cfaerr.UnsupportedOperation(o.Locator(), "CompleteMultipart called without a prior WritePart")
	}
	body := completeMultipartUpload{}
	for _, p := range parts {
		body.Parts = append(body.Parts, completePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	payload, err := xml.Marshal(body)
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "encoding multipart complete body", err)
	}
	url := fmt.Sprintf("%s?uploadId=%s", o.objectURL(), o.uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "building multipart complete request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return err
	}
	o.uploadID = ""
	return nil
}

func (o *Object) AbortMultipart(ctx context.Context) error {
	if o.uploadID == "" {
		return nil
	}
	url := fmt.Sprintf("%s?uploadId=%s", o.objectURL(), o.uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return cfaerr.BackendIO(o.Locator(), "building multipart abort request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusNoContent, http.StatusOK); err != nil {
		return err
	}
	o.uploadID = ""
	return nil
}

func (o *Object) Size(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.objectURL(), nil)
	if err != nil {
		return 0, cfaerr.BackendIO(o.Locator(), "building HEAD request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return 0, err
	}
	return resp.ContentLength, nil
}

type listResult struct {
	Keys []string `json:"keys"`
}

// List asks the store for every key under prefix; the wire shape here
// is a minimal JSON listing rather than S3's XML ListObjects, since the
// store side of this protocol is test-doubled rather than a real S3
// endpoint in this module's scope.
func (o *Object) List(ctx context.Context, prefix string) ([]string, error) {
	url := fmt.Sprintf("%s/%s?prefix=%s", o.endpoint, o.bucket, prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cfaerr.BackendIO(o.Locator(), "building list request", err)
	}
	resp, err := o.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.Locator(), resp, http.StatusOK); err != nil {
		return nil, err
	}
	var result listResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, cfaerr.BackendIO(o.Locator(), "parsing list response", err)
	}
	return result.Keys, nil
}

func checkStatus(locator string, resp *http.Response, want ...int) error {
	for _, w := range want {
		if resp.StatusCode == w {
			return nil
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return cfaerr.MissingEntity(locator, locator)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return cfaerr.BackendAuth(locator, fmt.Sprintf("HTTP status %s", resp.Status), nil)
	}
	return cfaerr.BackendIO(locator, fmt.Sprintf("unexpected HTTP status %s", resp.Status), nil)
}

var _ backend.Backend = (*Object)(nil)
