package koji

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
)

// MetadataFilename is the name the import metadata is uploaded under.
const MetadataFilename = "metadata.json"

// ImportBuild uploads the files of an import and asks the hub to create the
// build from them. Per file upload failures are collected in the result
// rather than aborting the import. A nil BuildInfo in the result means the
// hub created nothing.
func (c *Client) ImportBuild(ctx context.Context, s *Session, metadata *Import, files FileSource) (*ImportResult, error) {
	dir := "causeway/" + uuid.NewString()
	result := &ImportResult{UploadErrors: make(map[string]*UploadError)}

	for _, f := range files.Files() {
		if err := c.uploadFile(ctx, s, dir, f); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ue *UploadError
			if !errors.As(err, &ue) {
				ue = &UploadError{Path: f.Path, Message: err.Error(), Err: err}
			}
			result.UploadErrors[f.Path] = ue
		}
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding import metadata: %w", err)
	}
	if err := c.uploadChunks(ctx, s, dir, MetadataFilename, bytes.NewReader(raw)); err != nil {
		result.UploadErrors[MetadataFilename] = &UploadError{Path: MetadataFilename, Message: err.Error(), Err: err}
		return result, nil
	}

	var reply any
	if err := c.call(ctx, s, "CGImport", &reply, MetadataFilename, dir); err != nil {
		return nil, fmt.Errorf("importing build: %w", err)
	}
	result.BuildInfo = toBuildInfo(asMap(reply))
	c.logger.Info("koji import finished",
		"directory", dir,
		"files", len(files.Files()),
		"upload_errors", len(result.UploadErrors),
	)
	return result, nil
}

func (c *Client) uploadFile(ctx context.Context, s *Session, dir string, f File) error {
	rc, err := f.Open(ctx)
	if err != nil {
		return &UploadError{Path: f.Path, Message: fmt.Sprintf("opening file: %v", err), Err: err}
	}
	defer rc.Close()

	target := dir
	if d := path.Dir(f.Path); d != "." {
		target = path.Join(dir, d)
	}
	return c.uploadChunks(ctx, s, target, path.Base(f.Path), rc)
}

// uploadChunks sends r in chunks and finishes with a whole file check.
func (c *Client) uploadChunks(ctx context.Context, s *Session, dir, name string, r io.Reader) error {
	buf := make([]byte, c.chunkSize)
	whole := md5.New()
	var offset int64

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			chunk := buf[:n]
			sum := md5.Sum(chunk)
			whole.Write(chunk)
			var ok bool
			err := c.call(ctx, s, "uploadFile", &ok,
				dir, name, n, hex.EncodeToString(sum[:]), offset, base64.StdEncoding.EncodeToString(chunk))
			if err != nil {
				return fmt.Errorf("uploading %s at offset %d: %w", name, offset, err)
			}
			if !ok {
				return fmt.Errorf("hub rejected chunk of %s at offset %d", name, offset)
			}
			offset += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", name, readErr)
		}
	}

	var ok bool
	err := c.call(ctx, s, "uploadFile", &ok, dir, name, offset, hex.EncodeToString(whole.Sum(nil)), -1, "")
	if err != nil {
		return fmt.Errorf("verifying upload of %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("hub failed to verify %s", name)
	}
	return nil
}
