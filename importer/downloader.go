package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/giygas/dynamed-api/logging"
)

const maxDatasetSize = 64 << 20

// downloadFile fetches one dataset through the circuit breaker and stores it as UTF-8
func (im *Importer) downloadFile(ctx context.Context, name string) error {
	target := filepath.Join(im.dataDir, name)
	cleanPath := filepath.Clean(target)
	if filepath.Dir(cleanPath) != filepath.Clean(im.dataDir) {
		return fmt.Errorf("invalid filepath: %s", target)
	}

	fileURL, err := url.JoinPath(im.baseURL, name)
	if err != nil {
		return fmt.Errorf("invalid dataset url for %s: %w", name, err)
	}

	body, err := im.breaker.Execute(func() (interface{}, error) {
		return im.fetch(ctx, fileURL)
	})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", fileURL, err)
	}

	content, err := io.ReadAll(toUTF8(body.([]byte)))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}

	// Write next to the target then rename, so a reader never sees half a file
	tmp, err := os.CreateTemp(im.dataDir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create file for %s: %w", name, err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove temporary dataset", "error", err)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file %s: %w", cleanPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", cleanPath, err)
	}
	if err := os.Rename(tmp.Name(), cleanPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", cleanPath, err)
	}

	logging.Debug(fmt.Sprintf("%s downloaded without errors", name))
	return nil
}

func (im *Importer) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}

	response, err := im.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", response.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxDatasetSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(raw) > maxDatasetSize {
		return nil, fmt.Errorf("dataset larger than %d bytes", maxDatasetSize)
	}
	return raw, nil
}

// downloadAll refreshes every dataset concurrently and reports which ones succeeded.
// Failures are logged; the files already on disk are used instead.
func (im *Importer) downloadAll(ctx context.Context) map[string]bool {
	if err := os.MkdirAll(im.dataDir, 0750); err != nil {
		logging.Error("Failed to create data directory", "dir", im.dataDir, "error", err)
		return map[string]bool{}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []string
	downloaded := make(map[string]bool, len(Files))

	for _, name := range Files {
		wg.Go(func() {
			err := im.downloadFile(ctx, name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err.Error())
				return
			}
			downloaded[name] = true
		})
	}
	wg.Wait()

	if len(errs) > 0 {
		logging.Error("Download errors occurred, using datasets on disk", "errors", strings.Join(errs, "; "))
	}
	return downloaded
}
