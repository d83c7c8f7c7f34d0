package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type reconstructRequest struct {
	Instances [][]float64 `json:"instances"`
}

type reconstructResponse struct {
	Reconstructions [][]float64 `json:"reconstructions"`
	Predictions     [][]float64 `json:"predictions"`
}

// HTTPModel calls a model server that accepts {"instances": [...]} and
// answers with either "reconstructions" or the TF-Serving "predictions" key.
type HTTPModel struct {
	endpoint string
	client   *http.Client
}

func NewHTTPModel(endpoint string, client *http.Client) *HTTPModel {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPModel{endpoint: endpoint, client: client}
}

func (m *HTTPModel) Reconstruct(ctx context.Context, batch [][]float64) ([][]float64, error) {
	body, err := json.Marshal(reconstructRequest{Instances: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out reconstructResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	if out.Reconstructions != nil {
		return out.Reconstructions, nil
	}
	if out.Predictions != nil {
		return out.Predictions, nil
	}
	return nil, fmt.Errorf("model response has no reconstructions")
}
