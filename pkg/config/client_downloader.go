package config

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cavaliergopher/grab/v3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// AutoConsoleDownload fetches the web voice console bundle at startup so a
// bare server can still serve a usable client under /assets.
type AutoConsoleDownload struct {
	Enabled       bool   `yaml:"enabled"`
	ServerUrl     string `yaml:"server_url"`
	FromCustomUrl string `yaml:"from_custom_url"`
	FromRelease   string `yaml:"from_release"`
}

// Handle is the main entry point to trigger the console download process.
func (d *AutoConsoleDownload) Handle(a *AppConfig) error {
	if d == nil || !d.Enabled {
		return nil
	}

	logrus.Infoln("auto console download enabled")
	if d.ServerUrl == "" {
		return fmt.Errorf("`server_url` in `auto_console_download` is required when enabled")
	}

	if strings.Contains(d.ServerUrl, "localhost") {
		if !a.Client.Debug {
			return fmt.Errorf("`server_url` in `auto_console_download` cannot contain 'localhost' when debug mode is disabled")
		}
		logrus.Warnln("`server_url` contains 'localhost' in debug mode. This is not recommended for production.")
	}

	// First, determine the final absolute path for the console files
	consolePath := a.Client.Path
	if strings.HasPrefix(consolePath, "./") {
		consolePath = filepath.Join(a.RootWorkingDir, consolePath)
	}

	// Determine the target version
	targetVersion := d.FromRelease
	if d.FromCustomUrl == "" && targetVersion != "" {
		// We have a specific version, let's check if it's already installed.
		versionFile := filepath.Join(consolePath, "version.txt")
		if _, err := os.Stat(versionFile); err == nil {
			content, err := os.ReadFile(versionFile)
			if err == nil {
				installedVersion := strings.TrimSpace(string(content))
				if installedVersion == targetVersion {
					logrus.Infof("console version %s is already installed. skipping download.", targetVersion)
					return nil
				}
			}
		}
	}

	downloadUrl := d.FromCustomUrl
	if downloadUrl == "" {
		version := d.FromRelease
		if version == "" {
			version = "latest"
		}
		downloadUrl = fmt.Sprintf("https://github.com/ajvoice/aj-console/releases/download/%s/console.zip", version)
	}

	// Ensure the parent directory exists
	parentDir := filepath.Dir(consolePath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for console: %w", err)
	}

	// Create a temporary directory *on the same volume* as the final destination
	tempDir, err := os.MkdirTemp(parentDir, ".console-download-")
	if err != nil {
		return err
	}
	// Defer removal in case of error, but we will rename it on success
	defer os.RemoveAll(tempDir)

	logrus.Infof("downloading console from %s to %s", downloadUrl, tempDir)
	resp, err := grab.Get(tempDir, downloadUrl)
	if err != nil {
		return fmt.Errorf("failed to download console: %w", err)
	}
	zipFile := resp.Filename

	mType, err := mimetype.DetectFile(zipFile)
	if err != nil {
		return fmt.Errorf("failed to detect archive type: %w", err)
	}
	if !mType.Is("application/zip") {
		return fmt.Errorf("downloaded console archive is %s, expected application/zip", mType.String())
	}

	err = d.unzip(zipFile, tempDir)
	if err != nil {
		return fmt.Errorf("failed to unzip console: %w", err)
	}

	distPath := filepath.Join(tempDir, "console", "dist")
	if _, err := os.Stat(distPath); os.IsNotExist(err) {
		return fmt.Errorf("`console/dist` folder not found in the downloaded archive")
	}

	// Configure config.js inside the temporary dist path
	configSample := filepath.Join(distPath, "assets", "config_sample.js")
	configJs := filepath.Join(distPath, "assets", "config.js")

	input, err := os.ReadFile(configSample)
	if err != nil {
		return fmt.Errorf("failed to read config_sample.js: %w", err)
	}

	re := regexp.MustCompile(`serverUrl:\s*'.*?'`)
	newConfig := re.ReplaceAllString(string(input), fmt.Sprintf("serverUrl: '%s'", d.ServerUrl))

	err = os.WriteFile(configJs, []byte(newConfig), 0644)
	if err != nil {
		return fmt.Errorf("failed to write config.js: %w", err)
	}

	// This is the atomic part of the operation.
	if err = os.RemoveAll(consolePath); err != nil {
		return fmt.Errorf("failed to remove old console directory: %w", err)
	}

	if err = os.Rename(distPath, consolePath); err != nil {
		return fmt.Errorf("failed to atomically move new console directory: %w", err)
	}

	os.Remove(zipFile)
	os.Remove(filepath.Join(tempDir, "console"))

	logrus.Infof("successfully downloaded and configured console to %s", consolePath)
	return nil
}

func (d *AutoConsoleDownload) unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	os.MkdirAll(dest, 0755)

	for _, f := range r.File {
		err := d.extractAndWriteFile(f, dest)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *AutoConsoleDownload) extractAndWriteFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	path := filepath.Join(dest, f.Name)
	if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %s escapes the extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		os.MkdirAll(path, f.Mode())
	} else {
		os.MkdirAll(filepath.Dir(path), f.Mode())
		df, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}
		defer df.Close()

		_, err = io.Copy(df, rc)
		if err != nil {
			return err
		}
	}
	return nil
}
