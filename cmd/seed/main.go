// Package main seeds sample products and user profiles through the store
// port, for local development against Mongo or a fresh database.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/config"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/store/mongostore"
)

var products = []model.Product{
	{ID: "monstera-deliciosa", Title: "Monstera Deliciosa", Stock: 25},
	{ID: "ficus-lyrata", Title: "Fiddle Leaf Fig", Stock: 12},
	{ID: "epipremnum-aureum", Title: "Golden Pothos", Stock: 40},
	{ID: "sansevieria-trifasciata", Title: "Snake Plant", Stock: 30},
	{ID: "calathea-orbifolia", Title: "Calathea Orbifolia", Stock: 8},
}

var profiles = []model.UserProfile{
	{UID: "admin-1", Role: model.RoleAdmin},
	{UID: "moderator-1", Role: model.RoleModerator},
	{UID: "customer-1", Role: model.RoleCustomer},
	{UID: "customer-2", Role: model.RoleCustomer},
	{UID: "delivery-1", Role: model.RoleDelivery},
}

func main() {
	cfg := config.Load()
	obs.InitLogger()

	if cfg.MongoURI == "" {
		obs.Logger.Fatal("seed_requires_mongo", zap.String("hint", "set MONGO_URI"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		obs.Logger.Fatal("mongo_connect_failed", zap.Error(err))
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	now := time.Now().UTC()
	for _, p := range products {
		if err := st.Products().Put(ctx, p); err != nil {
			obs.Logger.Fatal("seed_product_failed", zap.String("product_id", p.ID), zap.Error(err))
		}
	}
	for _, u := range profiles {
		u.UpdatedAt = now
		if err := st.Profiles().Put(ctx, u); err != nil {
			obs.Logger.Fatal("seed_profile_failed", zap.String("uid", u.UID), zap.Error(err))
		}
	}

	obs.Logger.Info("seed_complete",
		zap.Int("products", len(products)),
		zap.Int("profiles", len(profiles)),
	)
}
