package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/config"
)

// ElasticClient indexes mirrored comments for operational search. Indexing
// sits off the hot path: every caller logs and swallows its errors.
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{enabled: false}, nil
	}

	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// CommentDocument is the indexed view of a mirrored comment
type CommentDocument struct {
	CommentID string     `json:"comment_id"`
	ThreadID  string     `json:"thread_id"`
	RoomID    string     `json:"room_id"`
	ProjectID string     `json:"project_id"`
	CreatedBy string     `json:"created_by"`
	Text      string     `json:"text"`
	CommentAt *time.Time `json:"comment_at"`
	EditedAt  *time.Time `json:"edited_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// IndexComment writes the comment document, replacing any previous version.
// The comment id doubles as the document id so re-deliveries overwrite
// instead of duplicating.
func (c *ElasticClient) IndexComment(ctx context.Context, doc *CommentDocument) error {
	if !c.enabled {
		return nil
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal comment document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.CommentID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to index comment")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("indexing comment %s failed: %s", doc.CommentID, res.String())
	}

	log.Debug().Str("comment_id", doc.CommentID).Str("index", indexName).Msg("Comment indexed")
	return nil
}
