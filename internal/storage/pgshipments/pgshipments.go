package pgshipments

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const connectTimeout = 10 * time.Second

// Storage reads shipments, users and drivers and listens for row changes.
// Every running Listen holds one pool connection.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects, checks the server is reachable and installs the schema and
// change triggers.
func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "trackview"
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}
	// пул ленивый: без Ping недоступная база обнаружится только на первом запросе
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping pg")
	}

	s := &Storage{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.pool.Ping(ctx), "ping pg")
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
