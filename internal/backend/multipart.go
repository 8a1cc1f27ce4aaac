package backend

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultPartSize is the multipart promotion threshold used when a
// caller does not configure one explicitly.
const DefaultPartSize = 50 * 1024 * 1024

// MinPartSize is the smallest part size the object-store contract
// accepts for any part but the last.
const MinPartSize = 5 * 1024 * 1024

// WriteMultipart writes data to b, promoting to a multipart upload
// when data exceeds partSize. Parts upload concurrently with 1-based,
// contiguous part numbers; CompleteMultipart is only called once every
// part has been acknowledged, and any part failure aborts the session.
func WriteMultipart(ctx context.Context, b Backend, data []byte, partSize int64) error {
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	if int64(len(data)) <= partSize {
		return b.WriteAll(ctx, data)
	}

	n := (int64(len(data)) + partSize - 1) / partSize
	etags := make([]string, n)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := int64(0); i < n; i++ {
		i := i
		eg.Go(func() error {
			start := i * partSize
			end := start + partSize
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			etag, err := b.WritePart(egCtx, int(i)+1, data[start:end])
			if err != nil {
				return err
			}
			etags[i] = etag
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		_ = b.AbortMultipart(context.Background())
		return err
	}

	parts := make([]Part, n)
	for i := range parts {
		parts[i] = Part{PartNumber: int(i) + 1, ETag: etags[i]}
	}
	return b.CompleteMultipart(ctx, parts)
}
