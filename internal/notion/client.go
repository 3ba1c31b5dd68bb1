package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jomei/notionapi"

	"github.com/takak2166/notionblog/internal/config"
	"github.com/takak2166/notionblog/internal/logger"
	"github.com/takak2166/notionblog/internal/models"
	"github.com/takak2166/notionblog/internal/parser"
)

const (
	pageSize   = 100
	maxRetries = 3
)

// Client reads posts and their content from a Notion database
type Client struct {
	client     NotionClient
	databaseID notionapi.DatabaseID
	maxDepth   int
	retryDelay time.Duration
}

// New creates a new Notion client
func New(cfg config.Config) (*Client, error) {
	if err := cfg.ValidateNotion(); err != nil {
		return nil, err
	}

	notionClient := notionapi.NewClient(notionapi.Token(cfg.NotionAPIKey))
	return NewWithClient(newNotionClientAdapter(notionClient), cfg.NotionDatabaseID, cfg.MaxBlockDepth, time.Second), nil
}

// NewWithClient creates a client on top of an existing NotionClient
func NewWithClient(nc NotionClient, databaseID string, maxDepth int, retryDelay time.Duration) *Client {
	return &Client{
		client:     nc,
		databaseID: notionapi.DatabaseID(databaseID),
		maxDepth:   maxDepth,
		retryDelay: retryDelay,
	}
}

// ListPosts returns published posts, newest first
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	logger.Debug("Querying posts database", logger.Fields{
		"database_id": c.databaseID,
	})

	var posts []models.Post
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: parser.PropPublished,
				Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
			},
			Sorts: []notionapi.SortObject{
				{Property: parser.PropDate, Direction: notionapi.SortOrderDESC},
			},
			StartCursor: cursor,
			PageSize:    pageSize,
		}

		var resp *notionapi.DatabaseQueryResponse
		err := c.retry(ctx, func() (err error) {
			resp, err = c.client.Database().Query(ctx, c.databaseID, req)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query posts database: %w", err)
		}

		for i := range resp.Results {
			posts = append(posts, parser.PostFromPage(&resp.Results[i]))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	logger.Info("Fetched posts", logger.Fields{
		"count": len(posts),
	})

	return posts, nil
}

// GetPost retrieves a single post page
func (c *Client) GetPost(ctx context.Context, pageID string) (models.Post, error) {
	var page *notionapi.Page
	err := c.retry(ctx, func() (err error) {
		page, err = c.client.Page().Get(ctx, notionapi.PageID(pageID))
		return err
	})
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to get page %s: %w", pageID, err)
	}
	return parser.PostFromPage(page), nil
}

// FetchContent walks the page's blocks and returns the top-level refs and the
// content graph. Containers are expanded up to the configured depth.
func (c *Client) FetchContent(ctx context.Context, pageID string) ([]string, models.Graph, error) {
	graph := models.Graph{}
	refs, err := c.fetchChildren(ctx, notionapi.BlockID(pageID), graph, 0)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Fetched page content", logger.Fields{
		"page_id": pageID,
		"blocks":  len(graph),
	})

	return refs, graph, nil
}

func (c *Client) fetchChildren(ctx context.Context, id notionapi.BlockID, graph models.Graph, depth int) ([]string, error) {
	var refs []string
	var cursor notionapi.Cursor

	for {
		pagination := &notionapi.Pagination{StartCursor: cursor, PageSize: pageSize}

		var resp *notionapi.GetChildrenResponse
		err := c.retry(ctx, func() (err error) {
			resp, err = c.client.Block().GetChildren(ctx, id, pagination)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get children of block %s: %w", id, err)
		}

		for _, block := range resp.Results {
			ref := string(block.GetID())
			info := parser.Classify(block)

			if info.Type == models.BlockContainer && block.GetHasChildren() && depth < c.maxDepth {
				children, err := c.fetchChildren(ctx, block.GetID(), graph, depth+1)
				if err != nil {
					return nil, err
				}
				info.Children = children
			}

			graph[ref] = info
			refs = append(refs, ref)
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	return refs, nil
}

// transient reports whether a failed request is worth repeating. Notion API
// errors other than rate limiting in the 4xx range will fail the same way again.
func transient(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	return true
}

// retry runs fn up to maxRetries times, waiting retryDelay between attempts
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		logger.Debug("Retrying Notion request", logger.Fields{
			"attempt": i + 1,
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, err)
}
