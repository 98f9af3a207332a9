package pbfextract

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Download fetches url into targetDir/filename, creating the directory and
// replacing any existing file. Returns the path of the downloaded file.
func Download(url, filename, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "can't create target directory '%s'", targetDir)
	}
	path := filepath.Join(targetDir, filename)

	resp, err := http.Get(url)
	if err != nil {
		return "", errors.Wrapf(err, "can't download '%s'", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status '%s' downloading '%s'", resp.Status, url)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "can't create '%s'", path)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return "", errors.Wrapf(err, "can't write '%s'", path)
	}
	return path, file.Close()
}

// CheckArchive returns the local path of a city's extract. With download
// enabled the extract is fetched from the catalog source; otherwise the
// file must already exist under archiveDir.
func CheckArchive(cityName, archiveDir string, download bool) (string, error) {
	if download {
		filename, url, err := BBBikeSource(cityName)
		if err != nil {
			return "", err
		}
		return Download(url, filename, archiveDir)
	}
	path := filepath.Join(archiveDir, strings.ToLower(cityName)+".osm.pbf")
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "no local extract for '%s'", cityName)
	}
	return path, nil
}
