package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.opentelemetry.io/otel/attribute"
)

// Client runs read-only Cypher over Bolt against Memgraph or Neo4j.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Database selects a Neo4j database; empty uses the server default.
	Database    string
	MaxPoolSize int
}

func (c Config) URI() string {
	return fmt.Sprintf("bolt://%s:%d", c.Host, c.Port)
}

func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI(), auth, func(c *neo4jconfig.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	logger.WithField("uri", cfg.URI()).Info("Created graph driver")
	return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// ReadRecords runs cypher routed to readers and returns each record keyed by
// its return column.
func (c *Client) ReadRecords(ctx context.Context, cypher string, params map[string]any) (records []map[string]any, err error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ReadRecords", attribute.Int("params", len(params)))
	start := time.Now()
	defer func() { tracing.EndSpan(span, err) }()

	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if c.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(c.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to run cypher: %w", err)
	}

	records = make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"records":  len(records),
		"duration": time.Since(start).String(),
	}).Debug("graph read complete")
	return records, nil
}
