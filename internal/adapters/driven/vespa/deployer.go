package vespa

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"
)

//go:embed schemas/services.xml schemas/drive_chunk.sd.tmpl
var schemaFS embed.FS

// Deployer pushes the drive_chunk application package to a Vespa config server
type Deployer struct {
	httpClient *http.Client
}

// NewDeployer creates a new Vespa deployer
func NewDeployer() *Deployer {
	return &Deployer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// validateEndpoint accepts http(s) URLs only and strips a trailing slash
func validateEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("vespa endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse vespa endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("vespa endpoint must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("vespa endpoint has no host")
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// Deploy renders the schema for dims-sized embeddings and activates it.
// The config server endpoint usually listens on port 19071.
func (d *Deployer) Deploy(ctx context.Context, endpoint string, dims int) error {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return err
	}
	if dims <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dims)
	}

	pkg, err := buildAppPackage(dims)
	if err != nil {
		return fmt.Errorf("build app package: %w", err)
	}

	deployURL := endpoint + "/application/v2/tenant/default/prepareandactivate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deployURL, bytes.NewReader(pkg))
	if err != nil {
		return fmt.Errorf("create deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deployment failed with status %s: %s", resp.Status, string(body))
	}
	return nil
}

// buildAppPackage zips services.xml and the rendered drive_chunk schema
func buildAppPackage(dims int) ([]byte, error) {
	services, err := schemaFS.ReadFile("schemas/services.xml")
	if err != nil {
		return nil, err
	}
	tmplContent, err := schemaFS.ReadFile("schemas/drive_chunk.sd.tmpl")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("schema").Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}
	var schema bytes.Buffer
	if err := tmpl.Execute(&schema, struct{ EmbeddingDim int }{dims}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string][]byte{
		"services.xml":           services,
		"schemas/drive_chunk.sd": schema.Bytes(),
	} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
