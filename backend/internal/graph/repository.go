package graph

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"storygraph/backend/pkg/logger"
	"go.uber.org/zap"
)

// Repository handles all Neo4j operations for the story knowledge graph.
// Reads go straight to the store; chapter syncs are serialized per project
// so two concurrent syncs for the same story cannot race on entity creation
// or relationship updates. Syncs for different projects run in parallel.
type Repository struct {
	driver      neo4j.DriverWithContext
	logger      *zap.Logger
	resolver    Resolver
	projectLock sync.Map // projectID -> *sync.Mutex
	schemaReady atomic.Bool
}

// Option configures a Repository
type Option func(*Repository)

// WithResolver replaces the default normalized-name entity resolution
// strategy
func WithResolver(res Resolver) Option {
	return func(r *Repository) {
		if res != nil {
			r.resolver = res
		}
	}
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, opts ...Option) *Repository {
	r := &Repository{
		driver:   driver,
		logger:   logger.Get(),
		resolver: NameResolver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// lockProject returns the mutex guarding chapter syncs for one project
func (r *Repository) lockProject(projectID string) *sync.Mutex {
	mu, _ := r.projectLock.LoadOrStore(projectID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
