package deploy

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	commonsHTTP "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	v1 "github.com/flanksource/gid-seminars/api/v1"
)

const csrfCookie = "X-LABKEY-CSRF"

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".ics":  "text/calendar; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".css":  "text/css",
	".js":   "application/javascript",
}

// ContentType maps a file extension to the upload content type.
func ContentType(path string) string {
	if t, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// Uploader pushes rendered files into a LabKey project's file root over
// WebDAV, authenticating with an API key.
type Uploader struct {
	ServerURL  string
	Project    string
	Folder     string
	Files      v1.WebDAVFiles
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration

	apiKey string
	client *commonsHTTP.Client
	log    logger.Logger

	mu      sync.Mutex
	csrf    string
	cookies []*http.Cookie
}

// NewUploader reads the API key from the environment variable named by
// deployment.api_key_env.
func NewUploader(settings v1.Settings, log logger.Logger) (*Uploader, error) {
	if log == nil {
		log = logger.StandardLogger()
	}
	if settings.LabKey.ServerURL == "" || settings.LabKey.Project == "" {
		return nil, &v1.DeploymentError{Target: "labkey", Cause: fmt.Errorf("labkey.server_url and labkey.project are required")}
	}

	env := settings.Deployment.GetAPIKeyEnv()
	key := os.Getenv(env)
	if key == "" {
		return nil, &v1.DeploymentError{Target: "labkey", Cause: fmt.Errorf("%s environment variable not set", env)}
	}

	return &Uploader{
		ServerURL:  settings.LabKey.ServerURL,
		Project:    settings.LabKey.Project,
		Folder:     settings.WebDAV.Folder(),
		Files:      settings.WebDAV.Files,
		MaxRetries: settings.Deployment.GetMaxRetries(),
		RetryDelay: settings.Deployment.GetRetryDelay(),
		Timeout:    30 * time.Second,
		apiKey:     key,
		client:     commonsHTTP.NewClient().Header("User-Agent", settings.HTTP.GetUserAgent()),
		log:        log,
	}, nil
}

// server defaults to https when server_url carries no scheme.
func (u *Uploader) server() string {
	if strings.Contains(u.ServerURL, "://") {
		return strings.TrimRight(u.ServerURL, "/")
	}
	return "https://" + strings.TrimRight(u.ServerURL, "/")
}

// FileURL is the WebDAV location of a remote file name.
func (u *Uploader) FileURL(name string) (string, error) {
	return url.JoinPath(u.server(), "_webdav", u.Project, u.Folder, name)
}

// DashboardURL is where the uploaded files can be browsed.
func (u *Uploader) DashboardURL() string {
	return fmt.Sprintf("%s/project/%s/begin.view", u.server(), u.Project)
}

func (u *Uploader) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("apikey:"+u.apiKey))
}

// token fetches the CSRF cookie with an OPTIONS request once per uploader.
// Failing to get one is not fatal.
func (u *Uploader) token(ctx context.Context, target string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.csrf != "" {
		return u.csrf
	}

	resp, err := u.client.R(ctx).
		Header("Authorization", u.authorization()).
		Do(http.MethodOptions, target)
	if err != nil {
		u.log.Warnf("Could not get CSRF token: %v", err)
		return ""
	}
	defer resp.Body.Close() // nolint:errcheck

	u.cookies = resp.Cookies()
	if c, ok := lo.Find(u.cookies, func(c *http.Cookie) bool { return c.Name == csrfCookie }); ok {
		u.csrf = c.Value
	}
	return u.csrf
}

func (u *Uploader) cookieHeader() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return strings.Join(lo.Map(u.cookies, func(c *http.Cookie, _ int) string {
		return c.Name + "=" + c.Value
	}), "; ")
}

// UploadFile PUTs one file, retrying with exponential backoff.
func (u *Uploader) UploadFile(ctx context.Context, path, remoteName string) error {
	if remoteName == "" {
		remoteName = filepath.Base(path)
	}
	target, err := u.FileURL(remoteName)
	if err != nil {
		return &v1.DeploymentError{Target: remoteName, Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &v1.DeploymentError{Target: remoteName, Cause: err}
	}

	u.log.Infof("Uploading %s", remoteName)
	maxRetries := max(u.MaxRetries, 1)
	backoff := retry.WithMaxRetries(uint64(maxRetries-1), retry.NewExponential(max(u.RetryDelay, time.Millisecond)))

	attempts := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := u.put(ctx, target, path, data); err != nil {
			if attempts < maxRetries {
				u.log.Warnf("Upload of %s failed, retrying (%d/%d): %v", remoteName, attempts+1, maxRetries, err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return &v1.DeploymentError{Target: remoteName, Cause: err}
	}
	u.log.Infof("Uploaded %s", remoteName)
	return nil
}

func (u *Uploader) put(ctx context.Context, target, path string, data []byte) error {
	csrf := u.token(ctx, target)

	ctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	req := u.client.R(ctx).
		Header("Authorization", u.authorization()).
		Header("Content-Type", ContentType(path))
	if csrf != "" {
		req = req.Header(csrfCookie, csrf)
	}
	if cookies := u.cookieHeader(); cookies != "" {
		req = req.Header("Cookie", cookies)
	}
	if err := req.Body(string(data)); err != nil {
		return err
	}

	resp, err := req.Do(http.MethodPut, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return fmt.Errorf("PUT %s returned %s", target, resp.Status)
}

// UploadAll uploads every enabled .html, .ics and .json file in dir and
// reports success per file name. A failed file does not stop the rest.
func (u *Uploader) UploadAll(ctx context.Context, dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &v1.DeploymentError{Target: dir, Cause: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !u.Files.Uploads(filepath.Ext(entry.Name())) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	results := make(map[string]bool, len(files))
	if len(files) == 0 {
		u.log.Warnf("No files found to upload in %s", dir)
		return results, nil
	}

	u.log.Infof("Uploading %d file(s) to LabKey", len(files))
	for _, name := range files {
		err := u.UploadFile(ctx, filepath.Join(dir, name), name)
		if err != nil {
			u.log.Errorf("%v", err)
		}
		results[name] = err == nil
	}
	return results, nil
}

// Summary counts successful and failed uploads.
func Summary(results map[string]bool) (succeeded, failed int) {
	for _, ok := range results {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
