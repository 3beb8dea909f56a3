// Package mergesvc calls the externally-hosted text-merge service. The
// service is just another source of resolved text for a conflict section; a
// failure here is surfaced per-section and never retried automatically.
package mergesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"draftsync/internal/errs"
)

// Instruction is the fixed system instruction sent with every request.
const Instruction = "Merge these two versions of the text. Preserve the author's voice. Return only the merged text."

type Client struct {
	endpoint   string
	credential string
	httpClient *http.Client
}

type mergeRequest struct {
	LocalText   string `json:"localText"`
	RemoteText  string `json:"remoteText"`
	Instruction string `json:"instruction"`
}

type mergeResponse struct {
	MergedText string `json:"mergedText"`
	Error      string `json:"error,omitempty"`
}

// New builds a client for the given endpoint, reading the credential from the
// named environment variable. The credential is resolved per call so a key
// set after startup is picked up.
func New(endpoint, credentialEnv string) *Client {
	return &Client{
		endpoint:   endpoint,
		credential: credentialEnv,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// Merge asks the service to merge two competing versions and returns the
// merged text.
func (c *Client) Merge(ctx context.Context, localText, remoteText string) (string, error) {
	if c.endpoint == "" {
		return "", errs.New(errs.KindExternalMerge, "merge service endpoint is not configured")
	}
	key := os.Getenv(c.credential)
	if key == "" {
		return "", errs.Newf(errs.KindExternalMerge, "merge service credential %s is not set", c.credential)
	}

	body, err := json.Marshal(mergeRequest{
		LocalText:   localText,
		RemoteText:  remoteText,
		Instruction: Instruction,
	})
	if err != nil {
		return "", errs.Wrap(errs.KindExternalMerge, "encoding merge request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", errs.Wrap(errs.KindExternalMerge, "building merge request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindExternalMerge, "calling merge service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errs.Newf(errs.KindExternalMerge,
			"merge service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var result mergeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errs.Wrap(errs.KindExternalMerge, "decoding merge response", err)
	}
	if result.Error != "" {
		return "", errs.Newf(errs.KindExternalMerge, "merge service error: %s", result.Error)
	}
	if strings.TrimSpace(result.MergedText) == "" {
		return "", errs.New(errs.KindExternalMerge, "merge service returned empty text")
	}

	return result.MergedText, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("mergesvc(%s)", c.endpoint)
}
