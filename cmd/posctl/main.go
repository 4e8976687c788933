package main

import (
	"context"

	"github.com/ariefcatur/go-pos/internal/cli"
	"github.com/ariefcatur/go-pos/internal/config"
	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/ariefcatur/go-pos/internal/postgres"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cli.Execute(cli.Backend{
		Open: func(ctx context.Context) (*pos.Service, func(), error) {
			db, err := postgres.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return nil, nil, err
			}
			return &pos.Service{Store: &pos.Repo{DB: db}}, db.Close, nil
		},
		Migrate: func(ctx context.Context) error {
			db, err := postgres.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(ctx, db)
		},
	})
}
