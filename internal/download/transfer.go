package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const partialSuffix = ".partial"

// fetchAll transfers files into dir with at most maxParallel concurrent
// fetches. The first failure cancels the remaining fetches.
func fetchAll(ctx context.Context, src Source, repoID, revision, dir string, files []RemoteFile, maxParallel int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: fmt.Errorf("create %s: %w", dir, err)}
	}
	g, ctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}
	for _, f := range files {
		f := f
		g.Go(func() error {
			return fetchFile(ctx, src, repoID, revision, dir, f)
		})
	}
	return g.Wait()
}

// fetchFile writes one artifact through a .partial file, resuming an earlier
// partial transfer when the source honors the range.
func fetchFile(ctx context.Context, src Source, repoID, revision, dir string, f RemoteFile) error {
	rel := filepath.FromSlash(f.Path)
	if !filepath.IsLocal(rel) {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: fmt.Errorf("refusing non-local path %q", f.Path)}
	}
	dest := filepath.Join(dir, rel)
	if fi, err := os.Stat(dest); err == nil && !fi.IsDir() && (f.Size <= 0 || fi.Size() == f.Size) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: err}
	}

	partial := dest + partialSuffix
	var offset int64
	if fi, err := os.Stat(partial); err == nil {
		offset = fi.Size()
		if f.Size > 0 && offset > f.Size {
			offset = 0
		}
	}
	if f.Size > 0 && offset == f.Size {
		return finishFile(repoID, partial, dest)
	}

	body, resumed, err := src.Open(ctx, repoID, revision, f.Path, offset)
	if err != nil {
		return asTransferError("fetch", repoID, err)
	}
	defer body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if resumed {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		offset = 0
	}
	out, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: err}
	}
	n, copyErr := io.Copy(out, &ctxReader{ctx: ctx, r: body})
	closeErr := out.Close()
	if copyErr != nil {
		if errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, context.DeadlineExceeded) {
			return copyErr
		}
		return &TransferError{Op: "fetch", ModelID: repoID, Err: fmt.Errorf("%s: %w", f.Path, copyErr)}
	}
	if closeErr != nil {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: closeErr}
	}
	if got := offset + n; f.Size > 0 && got != f.Size {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: fmt.Errorf("%s: size mismatch: got %d want %d", f.Path, got, f.Size)}
	}
	return finishFile(repoID, partial, dest)
}

func finishFile(repoID, partial, dest string) error {
	if err := os.Rename(partial, dest); err != nil {
		return &TransferError{Op: "fetch", ModelID: repoID, Err: err}
	}
	return nil
}

// ctxReader stops a copy once ctx is done, for sources whose bodies are not
// bound to the request context.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
