package dracor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"stabledracor/internal/services"
)

// Info is the payload of GET /info.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status,omitempty"`
	ExistDB string `json:"existdb,omitempty"`
	Base    string `json:"base,omitempty"`
}

// CorpusMetrics is the metrics block of a corpus listing.
type CorpusMetrics struct {
	Plays      int `json:"plays"`
	Characters int `json:"characters,omitempty"`
}

// CorpusSummary is one element of GET /corpora.
type CorpusSummary struct {
	Name    string         `json:"name"`
	Title   string         `json:"title,omitempty"`
	Metrics *CorpusMetrics `json:"metrics,omitempty"`
}

// Info returns version information. It doubles as the readiness probe.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.getJSON(ctx, "info", nil, &info)
	return info, err
}

// Ping reports whether the API answers /info.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Info(ctx)
	return err
}

// Corpora lists the corpora of the instance, optionally with metrics.
func (c *Client) Corpora(ctx context.Context, withMetrics bool) ([]CorpusSummary, error) {
	var query url.Values
	if withMetrics {
		query = url.Values{"include": []string{"metrics"}}
	}
	var list []CorpusSummary
	if err := c.getJSON(ctx, "corpora", query, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Corpus returns the metadata document of a corpus, including its roster.
func (c *Client) Corpus(ctx context.Context, name string) (CorpusMetadata, error) {
	var meta CorpusMetadata
	if err := c.getJSON(ctx, corpusPath(name), nil, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Play returns the metadata document of one play.
func (c *Client) Play(ctx context.Context, corpus, play string) (map[string]any, error) {
	var meta map[string]any
	if err := c.getJSON(ctx, playPath(corpus, play), nil, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// PlayTEI returns the TEI document of a play.
func (c *Client) PlayTEI(ctx context.Context, corpus, play string) ([]byte, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: playPath(corpus, play) + "/tei", accept: "application/xml"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tei of %s/%s: %w", corpus, play, err)
	}
	return data, nil
}

// AddCorpus creates a corpus from metadata. The roster is not sent. It
// reports false without error when the corpus already exists.
func (c *Client) AddCorpus(ctx context.Context, meta CorpusMetadata) (bool, error) {
	body, err := jsonBody(meta.WithoutRoster())
	if err != nil {
		return false, fmt.Errorf("encode corpus metadata: %w", err)
	}
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "corpora",
		body:        body,
		contentType: "application/json",
		accept:      "application/json",
		auth:        true,
	})
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	c.discard(resp)
	return true, nil
}

// PutPlayTEI stores a TEI document as play of a corpus.
func (c *Client) PutPlayTEI(ctx context.Context, corpus, play string, tei []byte) error {
	resp, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        playPath(corpus, play) + "/tei",
		body:        bytes.NewReader(tei),
		contentType: "application/xml",
		auth:        true,
	})
	if err != nil {
		return err
	}
	c.discard(resp)
	return nil
}

// DeleteCorpus removes a corpus. It reports false without error when the
// corpus does not exist.
func (c *Client) DeleteCorpus(ctx context.Context, corpus string) (bool, error) {
	return c.delete(ctx, corpusPath(corpus))
}

// DeletePlay removes one play, with the same not-found rule as DeleteCorpus.
func (c *Client) DeletePlay(ctx context.Context, corpus, play string) (bool, error) {
	return c.delete(ctx, playPath(corpus, play))
}

func (c *Client) delete(ctx context.Context, path string) (bool, error) {
	resp, err := c.do(ctx, request{method: http.MethodDelete, path: path, auth: true})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	c.discard(resp)
	return true, nil
}
