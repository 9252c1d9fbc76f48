package enrich

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Printf("[enrich] %s: %d MB downloaded", pw.label, pw.total/1024/1024)
		pw.last = pw.total
	}
	return n, err
}

// DownloadFile downloads a URL to a local path via a temp file in the
// same directory, so a partial download never replaces a good copy.
func DownloadFile(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[enrich] close response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("[enrich] remove temp file %s: %v", tmpName, err)
		}
	}()

	pw := &progressWriter{Writer: tmpFile, label: filepath.Base(path)}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// FetchDatabase returns a local path for the GeoIP database at url,
// downloading it into cacheDir on first use.
func FetchDatabase(url, cacheDir string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	urlParts := strings.Split(url, "/")
	localPath := filepath.Join(cacheDir, urlParts[len(urlParts)-1])

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		log.Printf("[enrich] Downloading %s", url)
		if err := DownloadFile(url, localPath); err != nil {
			return "", err
		}
	} else {
		log.Printf("[enrich] Using cached file: %s", localPath)
	}
	return localPath, nil
}

// LocateDatabase resolves a database argument that may be either a
// local file path or an http(s) URL. URLs are fetched into cacheDir on
// first use; paths are returned untouched.
func LocateDatabase(pathOrURL, cacheDir string) (string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return FetchDatabase(pathOrURL, cacheDir)
	}
	return pathOrURL, nil
}
