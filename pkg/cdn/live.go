package cdn

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxDescriptorSize bounds how much of a served descriptor is read.
const maxDescriptorSize = 1 << 20

// FetchLiveDescriptor downloads the descriptor document served through the
// CDN at url. A nil client uses http.DefaultClient.
func FetchLiveDescriptor(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("cdn: invalid descriptor URL %q: %w", url, err)
	}
	req.Header.Set("Accept", "application/x-yaml, text/plain, */*")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cdn: failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdn: fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorSize))
	if err != nil {
		return "", fmt.Errorf("cdn: failed to read %s: %w", url, err)
	}
	return string(body), nil
}
