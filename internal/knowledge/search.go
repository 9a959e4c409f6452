// Package knowledge retrieves operational reference text from Elasticsearch
// to ground the generative fallback: ramp assignments, terminal procedures,
// shift conventions.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/logger"
)

// Searcher queries the knowledge index.
type Searcher struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSearcher(client *elasticsearch.Client, cfg config.KnowledgeConfig, log logger.Logger) *Searcher {
	index := cfg.Index
	if index == "" {
		index = "ops_knowledge"
	}
	return &Searcher{client: client, index: index, logger: log}
}

type searchHit struct {
	Source struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// Search returns up to max reference sections relevant to the query text.
func (s *Searcher) Search(ctx context.Context, query string, max int) ([]string, error) {
	if max <= 0 {
		max = 4
	}

	body := map[string]interface{}{
		"size": max,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knowledge search: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	sections := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		section := hit.Source.Content
		if hit.Source.Title != "" {
			section = hit.Source.Title + ": " + section
		}
		if section != "" {
			sections = append(sections, section)
		}
	}

	s.logger.Debug("knowledge search completed", map[string]interface{}{
		"index":    s.index,
		"sections": len(sections),
	})
	return sections, nil
}
